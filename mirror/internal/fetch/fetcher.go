// Package fetch retrieves entries from the remote OEIS server.
//
// The server's text interface wraps each entry in a fixed envelope: five
// header lines (greeting, blank, search echo, result count, blank), the
// %-directive content, and a two-line footer (blank, license notice).
// Fetch validates the envelope and returns the bare directive content.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/oeisdb/oeis"
)

// ErrNoSuchEntry reports that the requested id does not exist on the
// remote server. The prober relies on this to narrow its search range.
var ErrNoSuchEntry = errors.New("fetch: no such entry")

const (
	greetingLine = "# Greetings from The On-Line Encyclopedia of Integer Sequences! http://oeis.org/"
	exactlyOne   = "Showing 1-1 of 1"
)

// Result contains the outcome of a successful fetch.
type Result struct {
	OeisID int
	// Timestamp is taken before the first request, so it is a safe
	// lower bound on the content's age.
	Timestamp time.Time
	// Main is the %-directive content with the envelope stripped.
	Main string
	// BFile is the raw b-file text, empty when not requested.
	BFile string
}

// Config configures the fetcher.
type Config struct {
	// BaseURL of the OEIS server. Default: http://oeis.org.
	BaseURL string `yaml:"base_url"`
	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
	// MaxBytes caps the response body size. Default: 16MB.
	MaxBytes int64 `yaml:"max_bytes"`
	// UserAgent sent with requests.
	UserAgent string `yaml:"user_agent"`
	// RequestsPerSecond limits the aggregate request rate across all
	// workers sharing this fetcher. Default: 25.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst size for the rate limiter. Default: 5.
	Burst int `yaml:"burst"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://oeis.org"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 16 * 1024 * 1024 // 16MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "oeisdb/1.0"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 25
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
}

// Fetcher performs rate-limited HTTP requests against the OEIS server.
// Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	config  Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		config:  cfg,
	}
}

// MainURL returns the text-format search URL for an entry.
func (f *Fetcher) MainURL(id int) string {
	return fmt.Sprintf("%s/search?q=id:%s&fmt=text", f.config.BaseURL, oeis.FormatID(id))
}

// BFileURL returns the URL of an entry's b-file.
func (f *Fetcher) BFileURL(id int) string {
	return fmt.Sprintf("%s/%s/b%06d.txt", f.config.BaseURL, oeis.FormatID(id), id)
}

// Fetch retrieves one entry, and its b-file when withBFile is set.
// A failed b-file fetch fails the whole call so the result is never a
// torn main/b-file pair. Returns ErrNoSuchEntry (wrapped) when the
// server reports no match for the id.
func (f *Fetcher) Fetch(ctx context.Context, id int, withBFile bool) (*Result, error) {
	// Taken before the request: the content is at least this old.
	timestamp := time.Now()

	body, err := f.get(ctx, f.MainURL(id))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", oeis.FormatID(id), err)
	}
	main, err := stripEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", oeis.FormatID(id), err)
	}

	result := &Result{OeisID: id, Timestamp: timestamp, Main: main}
	if withBFile {
		bfile, err := f.get(ctx, f.BFileURL(id))
		if err != nil {
			return nil, fmt.Errorf("fetch %s b-file: %w", oeis.FormatID(id), err)
		}
		result.BFile = bfile
	}
	return result, nil
}

// get performs one rate-limited GET and returns the body as a string.
func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// stripEnvelope validates the search response envelope and returns the
// directive content. The result-count line decides the outcome: only a
// single-match response is an entry. A no-match response still carries
// the greeting header, which distinguishes ErrNoSuchEntry from garbage.
func stripEnvelope(body string) (string, error) {
	lines := strings.Split(body, "\n")

	if len(lines) > 3 && strings.TrimSpace(lines[3]) == exactlyOne {
		// Header is 5 lines, footer is a blank line plus the license
		// notice, and the body ends with a newline. The license check
		// also catches bodies truncated by the size cap.
		if len(lines) < 9 || lines[len(lines)-1] != "" || !strings.HasPrefix(lines[len(lines)-2], "#") {
			return "", errors.New("fetch: malformed response envelope")
		}
		return strings.Join(lines[5:len(lines)-3], "\n") + "\n", nil
	}

	if strings.TrimSpace(lines[0]) == greetingLine {
		return "", ErrNoSuchEntry
	}
	return "", errors.New("fetch: malformed response envelope")
}
