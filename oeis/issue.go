package oeis

import "fmt"

// IssueType classifies a problem detected while parsing an entry.
type IssueType int

const (
	IssueMissingAuthor IssueType = iota
	IssueMissingOffset
	IssueNoValues
	IssueSingleOffsetValue
	IssueValueMismatch
	IssueFirstIndexMismatch
	IssueMainLongerThanBFile
	IssueNonSequentialIndexes
	IssueMagnitudeOffsetMismatch
	IssueUnacceptableCharacters
	IssueDuplicateKeyword
	IssueUnparseableBFileLine
	IssueEmptyKeyword
	IssueUnusualIdentification
	IssueUnexpectedKeyword
	IssueMissingValueSeparator
	IssueReconstruction
	IssueTrailingSpace
	IssueMissingSignKeyword
	IssueHugeValues
	IssueTablWithTabf
	IssueNiceWithLess
	IssueEasyWithHard
	IssueNonnWithSign
	IssueFullWithMore
	IssueAllocatedCombined
	IssueAllocatingCombined
	IssueDeadCombined
	IssueRecycledCombined
	IssueMissingNonnSign
)

var issueTypeNames = [...]string{
	IssueMissingAuthor:           "missing_author",
	IssueMissingOffset:           "missing_offset",
	IssueNoValues:                "no_values",
	IssueSingleOffsetValue:       "single_offset_value",
	IssueValueMismatch:           "value_mismatch",
	IssueFirstIndexMismatch:      "first_index_mismatch",
	IssueMainLongerThanBFile:     "main_longer_than_bfile",
	IssueNonSequentialIndexes:    "non_sequential_indexes",
	IssueMagnitudeOffsetMismatch: "magnitude_offset_mismatch",
	IssueUnacceptableCharacters:  "unacceptable_characters",
	IssueDuplicateKeyword:        "duplicate_keyword",
	IssueUnparseableBFileLine:    "unparseable_bfile_line",
	IssueEmptyKeyword:            "empty_keyword",
	IssueUnusualIdentification:   "unusual_identification",
	IssueUnexpectedKeyword:       "unexpected_keyword",
	IssueMissingValueSeparator:   "missing_value_separator",
	IssueReconstruction:          "reconstruction",
	IssueTrailingSpace:           "trailing_space",
	IssueMissingSignKeyword:      "missing_sign_keyword",
	IssueHugeValues:              "huge_values",
	IssueTablWithTabf:            "tabl_with_tabf",
	IssueNiceWithLess:            "nice_with_less",
	IssueEasyWithHard:            "easy_with_hard",
	IssueNonnWithSign:            "nonn_with_sign",
	IssueFullWithMore:            "full_with_more",
	IssueAllocatedCombined:       "allocated_combined",
	IssueAllocatingCombined:      "allocating_combined",
	IssueDeadCombined:            "dead_combined",
	IssueRecycledCombined:        "recycled_combined",
	IssueMissingNonnSign:         "missing_nonn_sign",
}

func (t IssueType) String() string {
	if t < 0 || int(t) >= len(issueTypeNames) {
		return fmt.Sprintf("issue(%d)", int(t))
	}
	return issueTypeNames[t]
}

// MarshalText renders the type as its snake_case name, so issues serialize
// readably in JSON.
func (t IssueType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Issue describes a single problem found in a fetched entry. Issues never
// abort parsing; they are delivered through the callback given to Parse.
type Issue struct {
	OeisID      int       `json:"oeis_id"`
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", FormatID(i.OeisID), i.Type, i.Description)
}
