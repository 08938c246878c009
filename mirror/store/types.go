package store

// Record is one mirrored entry as stored: the raw directive text plus the
// observation window, in Unix seconds.
type Record struct {
	OeisID       int     `json:"oeis_id"`
	T1           float64 `json:"t1"`
	T2           float64 `json:"t2"`
	MainContent  string  `json:"main_content"`
	BFileContent string  `json:"bfile_content"`
}

// Fetched is a successfully fetched entry, ready for reconciliation.
type Fetched struct {
	OeisID    int
	Timestamp float64
	Main      string
	BFile     string
}

// FetchError records a failed fetch for the log.
type FetchError struct {
	OeisID int
	Err    string
}

// Counts summarizes the outcome of one reconciled batch.
type Counts struct {
	New       int `json:"new"`
	Identical int `json:"identical"`
	Updated   int `json:"updated"`
	Failures  int `json:"failures"`
}

// Total returns the number of successfully reconciled entries in the batch.
func (c Counts) Total() int {
	return c.New + c.Identical + c.Updated
}

// Stats is a queryable summary of the mirror database.
type Stats struct {
	Entries    int     `json:"entries"`
	HighestID  int     `json:"highest_id"`
	ZeroWindow int     `json:"zero_window"`
	OldestT2   float64 `json:"oldest_t2"`
	NewestT2   float64 `json:"newest_t2"`
}
