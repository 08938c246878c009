// Package oeis parses raw OEIS entries into structured form.
//
// An entry arrives as two pieces of text: the main content (directive
// lines, one per line, as served by the search endpoint with the response
// envelope already removed) and the b-file (an indexed table of values).
// Parse turns the pair into an Entry plus a stream of Issues describing
// every format anomaly it noticed along the way. Issues are advisory and
// never stop the parse; only grammar-level corruption (unparseable or
// misordered directive stream) is returned as an error.
package oeis

import (
	"fmt"
	"math/big"
)

// Entry is one fully parsed OEIS entry, split out by field.
//
// Optional fields are pointers; nil means the corresponding directive was
// absent or empty. The free-text sections are carried verbatim, one line
// per directive occurrence, each terminated by a newline.
type Entry struct {
	OeisID              int        `json:"oeis_id"`
	Identification      *string    `json:"identification,omitempty"`
	Values              []*big.Int `json:"values"`
	Name                string     `json:"name"`
	Comments            *string    `json:"comments,omitempty"`
	References          *string    `json:"references,omitempty"`
	Links               *string    `json:"links,omitempty"`
	Formulas            *string    `json:"formulas,omitempty"`
	Examples            *string    `json:"examples,omitempty"`
	MaplePrograms       *string    `json:"maple_programs,omitempty"`
	MathematicaPrograms *string    `json:"mathematica_programs,omitempty"`
	OtherPrograms       *string    `json:"other_programs,omitempty"`
	CrossReferences     *string    `json:"cross_references,omitempty"`
	Keywords            []string   `json:"keywords"`
	OffsetA             *int       `json:"offset_a,omitempty"`
	OffsetB             *int       `json:"offset_b,omitempty"`
	Author              *string    `json:"author,omitempty"`
	Extensions          *string    `json:"extensions,omitempty"`
}

func (e *Entry) String() string { return FormatID(e.OeisID) }

// FormatID renders an OEIS id in its canonical A-number form, e.g. A000045.
func FormatID(id int) string { return fmt.Sprintf("A%06d", id) }
