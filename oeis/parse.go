package oeis

import (
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// The order and count of directives in an entry:
//
//	%I   one            identification
//	%STU S/ST/STU       unsigned values
//	%VWX V/VW/VWX       signed values, present only when negatives occur
//	%N   one            name
//	%C   zero or more   comments
//	%D   zero or more   detailed references
//	%H   zero or more   links
//	%F   zero or more   formulas
//	%e   zero or more   examples
//	%p   zero or more   Maple programs
//	%t   zero or more   Mathematica programs
//	%o   zero or more   other programs
//	%Y   zero or more   cross-references
//	%K   one            keywords
//	%O   zero or one    offset a or a,b
//	%A   zero or one    author
//	%E   zero or more   extensions and errors
var directiveOrderPattern = regexp.MustCompile(`^I(?:S|ST|STU)(?:|V|VW|VWX)NC*D*H*F*e*p*t*o*Y*KO?A?E*$`)

var identificationPattern = regexp.MustCompile(`^[MN][0-9]{4}( [MN][0-9]{4})*$`)

// A b-file line is an index and a value separated by blanks. Anything after
// the value is tolerated.
var bfileLinePattern = regexp.MustCompile(`^(-?[0-9]+)[ \t]+(-?[0-9]+)`)

type directiveLine struct {
	dir   rune
	value string
}

// reporter formats a description and hands the resulting Issue to the caller.
type reporter func(t IssueType, format string, args ...any)

// Parse parses the main directive text and the b-file text of entry id into
// an Entry. Problems that do not prevent parsing are delivered to report in
// the order they are found; report may be nil. Grammar violations that make
// the entry unusable abort with one of the sentinel errors of this package.
//
// Parsing is deterministic: the same inputs produce the same Entry and the
// same issue sequence.
func Parse(id int, main, bfile string, report func(Issue)) (*Entry, error) {
	if report == nil {
		report = func(Issue) {}
	}
	found := reporter(func(t IssueType, format string, args ...any) {
		report(Issue{OeisID: id, Type: t, Description: fmt.Sprintf(format, args...)})
	})

	entry, err := parseMainContent(id, main, found)
	if err != nil {
		return nil, err
	}

	firstIndex, bfileValues := parseBFileContent(bfile, found)

	// Reconcile the directive values with the b-file values. When they agree
	// on the shared prefix the longer sequence wins; on disagreement the
	// directive values are the safer choice.
	mainValues := entry.Values
	if len(mainValues) > len(bfileValues) {
		found(IssueMainLongerThanBFile,
			"Main file has more values than b-file (main: %d, b-file: %d).",
			len(mainValues), len(bfileValues))
	}
	consistent := true
	for i := 0; i < len(mainValues) && i < len(bfileValues); i++ {
		if mainValues[i].Cmp(bfileValues[i]) != 0 {
			consistent = false
			break
		}
	}
	if consistent {
		if len(bfileValues) > len(mainValues) {
			entry.Values = bfileValues
		}
	} else {
		found(IssueValueMismatch,
			"Value mismatch between main file and b-file (main: %s ; b-file: %s).",
			formatValues(mainValues, 10), formatValues(bfileValues, 10))
	}

	if entry.OffsetA != nil {
		switch {
		case firstIndex == nil:
			found(IssueFirstIndexMismatch,
				"%%O directive claims first index is %d, but the b-file has no values.", *entry.OffsetA)
		case *firstIndex != *entry.OffsetA:
			found(IssueFirstIndexMismatch,
				"%%O directive claims first index is %d, but b-file starts at index %d.", *entry.OffsetA, *firstIndex)
		}
	}

	if entry.OffsetB != nil {
		expected := 1
		one := big.NewInt(1)
		var abs big.Int
		for i, v := range entry.Values {
			if abs.Abs(v).Cmp(one) > 0 {
				expected = i + 1
				break
			}
		}
		if *entry.OffsetB != expected {
			found(IssueMagnitudeOffsetMismatch,
				"%%O directive claims first element where magnitude exceeds 1 is at position %d, but values suggest this should be %d.",
				*entry.OffsetB, expected)
		}
	}

	return entry, nil
}

// ParseEntry is Parse with the issues collected into a slice. The slice is
// never nil, so it serializes as an empty JSON array when no issues were
// found.
func ParseEntry(id int, main, bfile string) (*Entry, []Issue, error) {
	issues := []Issue{}
	entry, err := Parse(id, main, bfile, func(i Issue) { issues = append(issues, i) })
	if err != nil {
		return nil, issues, err
	}
	return entry, issues, nil
}

func parseMainContent(id int, main string, found reporter) (*Entry, error) {
	linePattern := regexp.MustCompile(fmt.Sprintf(`(?m)%%(.) A%06d(.*)$`, id))

	matches := linePattern.FindAllStringSubmatch(main, -1)
	if len(matches) == 0 {
		return nil, ErrNoDirectives
	}

	// Strip the single space between the A-number and the value.
	lines := make([]directiveLine, 0, len(matches))
	for _, m := range matches {
		dir, _ := utf8.DecodeRuneInString(m[1])
		value := m[2]
		if value != "" {
			if strings.HasPrefix(value, " ") {
				value = value[1:]
				if value == "" {
					found(IssueTrailingSpace,
						"The %%%c directive has a trailing space but no value.", dir)
				}
			} else {
				found(IssueMissingValueSeparator,
					"The %%%c directive should have a space before the start of its value.", dir)
			}
		}
		lines = append(lines, directiveLine{dir: dir, value: value})
	}

	// Rebuilding the content from the parsed lines must reproduce the input
	// byte for byte; anything else means lines were dropped or malformed.
	var rebuilt strings.Builder
	for _, ln := range lines {
		if ln.value == "" {
			fmt.Fprintf(&rebuilt, "%%%c A%06d\n", ln.dir, id)
		} else {
			fmt.Fprintf(&rebuilt, "%%%c A%06d %s\n", ln.dir, id, ln.value)
		}
	}
	if rebuilt.String() != main {
		found(IssueReconstruction,
			"Main content reconstruction failed (original: %q; reconstruction: %q).", main, rebuilt.String())
	}

	var order strings.Builder
	for _, ln := range lines {
		order.WriteRune(ln.dir)
	}
	if !directiveOrderPattern.MatchString(order.String()) {
		return nil, fmt.Errorf("%w: %q", ErrDirectiveOrder, order.String())
	}

	dv := make(map[rune][]string)
	for _, ln := range lines {
		dv[ln.dir] = append(dv[ln.dir], ln.value)
		if set, ok := acceptableCharacters[ln.dir]; ok {
			if bad := unacceptableRunes(ln.value, set); len(bad) > 0 {
				found(IssueUnacceptableCharacters,
					"Unacceptable characters in value of %%%c directive (%q): %s.",
					ln.dir, ln.value, formatRunes(bad))
			}
		}
	}

	stuValues, _, err := parseValueDirectives(dv, "STU")
	if err != nil {
		return nil, err
	}
	vwxValues, vwxPresent, err := parseValueDirectives(dv, "VWX")
	if err != nil {
		return nil, err
	}

	// Keywords come first; they influence several later checks.
	rawKeywords := strings.Split(singleLine(dv, 'K'), ",")

	var unexpected []string
	seenUnexpected := make(map[string]struct{})
	for _, kw := range rawKeywords {
		if _, ok := expectedKeywords[kw]; !ok {
			if _, dup := seenUnexpected[kw]; !dup {
				seenUnexpected[kw] = struct{}{}
				unexpected = append(unexpected, kw)
			}
		}
	}
	sort.Strings(unexpected)
	for _, kw := range unexpected {
		if kw == "" {
			found(IssueEmptyKeyword, "Unexpected empty keyword in %%K directive value.")
		} else {
			found(IssueUnexpectedKeyword, "Unexpected keyword '%s' in %%K directive value.", kw)
		}
	}

	counts := make(map[string]int, len(rawKeywords))
	var firstSeen []string
	for _, kw := range rawKeywords {
		if counts[kw] == 0 {
			firstSeen = append(firstSeen, kw)
		}
		counts[kw]++
	}
	for _, kw := range firstSeen {
		if counts[kw] > 1 {
			found(IssueDuplicateKeyword,
				"Keyword '%s' occurs %d times in %%K directive value.", kw, counts[kw])
		}
	}

	// Canonical keyword list: drop empties and duplicates, keep first
	// occurrence order. No sorting.
	keywords := make([]string, 0, len(rawKeywords))
	keywordSet := make(map[string]struct{}, len(rawKeywords))
	for _, kw := range rawKeywords {
		if kw == "" {
			continue
		}
		if _, dup := keywordSet[kw]; dup {
			continue
		}
		keywordSet[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	checkKeywords(keywords, keywordSet, found)

	var identification *string
	if v := singleLine(dv, 'I'); v != "" {
		if !identificationPattern.MatchString(v) {
			found(IssueUnusualIdentification, "Unusual %%I directive value: '%s'.", v)
		}
		identification = &v
	}

	if len(stuValues) == 0 {
		found(IssueNoValues, "No values listed (empty %%S directive).")
	}

	mainValues := stuValues
	if vwxPresent {
		if err := verifySignedValues(stuValues, vwxValues); err != nil {
			return nil, err
		}
		mainValues = vwxValues
	}

	_, hasDead := keywordSet["dead"]
	_, hasSign := keywordSet["sign"]
	if !hasDead && !hasSign {
		for _, v := range mainValues {
			if v.Sign() < 0 {
				found(IssueMissingSignKeyword, "Negative values are present, but 'sign' keyword is missing.")
				break
			}
		}
	}

	if len(mainValues) > 0 {
		maxDigits := 0
		var abs big.Int
		for _, v := range mainValues {
			if d := len(abs.Abs(v).String()); d > maxDigits {
				maxDigits = d
			}
		}
		if maxDigits > 1000 {
			found(IssueHugeValues, "Sequence contains extremely large values (up to %d digits).", maxDigits)
		}
	}

	// Placeholder entries have no author or offset; only report those as
	// missing on live entries.
	entryState := hasEntryStateKeyword(keywords)

	author := optionalSingleLine(dv, 'A')
	if author == nil && !entryState {
		found(IssueMissingAuthor, "Missing %%A directive.")
	}

	var offsetA, offsetB *int
	if offset := optionalSingleLine(dv, 'O'); offset == nil {
		if !entryState {
			found(IssueMissingOffset, "Missing %%O directive.")
		}
	} else {
		parts := strings.Split(*offset, ",")
		nums := make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || strconv.Itoa(n) != p {
				return nil, fmt.Errorf("%w: %q in %%O directive", ErrBadInteger, p)
			}
			nums[i] = n
		}
		switch len(nums) {
		case 1:
			found(IssueSingleOffsetValue, "The %%O directive only has a single value (%d).", nums[0])
			offsetA = &nums[0]
		case 2:
			offsetA = &nums[0]
			offsetB = &nums[1]
		default:
			return nil, fmt.Errorf("%w: %d values", ErrBadOffset, len(nums))
		}
	}

	return &Entry{
		OeisID:              id,
		Identification:      identification,
		Values:              mainValues,
		Name:                singleLine(dv, 'N'),
		Comments:            optionalMultiline(dv, 'C'),
		References:          optionalMultiline(dv, 'D'),
		Links:               optionalMultiline(dv, 'H'),
		Formulas:            optionalMultiline(dv, 'F'),
		Examples:            optionalMultiline(dv, 'e'),
		MaplePrograms:       optionalMultiline(dv, 'p'),
		MathematicaPrograms: optionalMultiline(dv, 't'),
		OtherPrograms:       optionalMultiline(dv, 'o'),
		CrossReferences:     optionalMultiline(dv, 'Y'),
		Keywords:            keywords,
		OffsetA:             offsetA,
		OffsetB:             offsetB,
		Author:              author,
		Extensions:          optionalMultiline(dv, 'E'),
	}, nil
}

// checkKeywords enforces the keyword combination rules on the canonical list.
func checkKeywords(keywords []string, keywordSet map[string]struct{}, found reporter) {
	both := func(a, b string) bool {
		_, okA := keywordSet[a]
		_, okB := keywordSet[b]
		return okA && okB
	}

	if both("tabl", "tabf") {
		found(IssueTablWithTabf, "Keywords 'tabl' and 'tabf' occur together, which should not happen.")
	}
	if both("nice", "less") {
		found(IssueNiceWithLess, "Keywords 'nice' and 'less' occur together, which should not happen.")
	}
	if both("easy", "hard") {
		found(IssueEasyWithHard, "Keywords 'easy' and 'hard' occur together, which should not happen.")
	}
	if both("nonn", "sign") {
		found(IssueNonnWithSign, "Keywords 'nonn' and 'sign' occur together, which should not happen.")
	}
	if both("full", "more") {
		found(IssueFullWithMore, "Keywords 'full' and 'more' occur together, which should not happen.")
	}

	combined := func(kw string) bool {
		_, ok := keywordSet[kw]
		return ok && len(keywords) > 1
	}

	if combined("allocated") {
		found(IssueAllocatedCombined, "Keyword 'allocated' occurs in combination with other keywords, which should not happen.")
	}
	if combined("allocating") {
		found(IssueAllocatingCombined, "Keyword 'allocating' occurs in combination with other keywords, which should not happen.")
	}
	if combined("dead") {
		found(IssueDeadCombined, "Keyword 'dead' occurs in combination with other keywords, which should not happen.")
	}
	if combined("recycled") {
		found(IssueRecycledCombined, "Keyword 'recycled' occurs in combination with other keywords, which should not happen.")
	}

	if !hasEntryStateKeyword(keywords) {
		_, nonn := keywordSet["nonn"]
		_, sign := keywordSet["sign"]
		if !nonn && !sign {
			found(IssueMissingNonnSign, "Keyword 'nonn' or 'sign' are both absent.")
		}
	}
}

// parseValueDirectives merges the lines of a value directive group (STU or
// VWX) and parses them as a comma-separated integer list. A line ending in a
// comma continues on the next directive of the group. Returns present=false
// when the group is absent entirely; an empty %S yields an empty slice.
func parseValueDirectives(dv map[rune][]string, group string) (values []*big.Int, present bool, err error) {
	// continuation state: 0 before the first line, 1 when the previous line
	// ended with a comma, -1 when the group is closed
	state := 0
	var parts []string
	for _, dir := range group {
		vals, ok := dv[dir]
		if !ok {
			if state == 1 {
				return nil, false, fmt.Errorf("%w: dangling comma in %%%c group", ErrValueContinuation, group[0])
			}
			state = -1
			continue
		}
		if state == -1 {
			return nil, false, fmt.Errorf("%w: %%%c follows a line without a trailing comma", ErrValueContinuation, dir)
		}
		line := vals[0]
		parts = append(parts, line)
		if strings.HasSuffix(line, ",") {
			state = 1
		} else {
			state = -1
		}
	}
	if state == 1 {
		return nil, false, fmt.Errorf("%w: dangling comma in %%%c group", ErrValueContinuation, group[0])
	}

	if len(parts) == 0 {
		return nil, false, nil
	}
	merged := strings.Join(parts, "")
	if merged == "" {
		return []*big.Int{}, true, nil
	}

	tokens := strings.Split(merged, ",")
	values = make([]*big.Int, len(tokens))
	for i, tok := range tokens {
		n, ok := new(big.Int).SetString(tok, 10)
		if !ok || n.String() != tok {
			return nil, false, fmt.Errorf("%w: %q in %%%c group", ErrBadInteger, tok, group[0])
		}
		values[i] = n
	}
	return values, true, nil
}

// verifySignedValues checks a V/W/X group against its S/T/U counterpart: same
// length, same magnitudes, and at least one negative member, since the signed
// group only exists when negatives occur.
func verifySignedValues(unsigned, signed []*big.Int) error {
	if len(signed) != len(unsigned) {
		return fmt.Errorf("%w: %d signed versus %d unsigned", ErrSignedValues, len(signed), len(unsigned))
	}
	negative := false
	var abs big.Int
	for i, v := range signed {
		if v.Sign() < 0 {
			negative = true
		}
		if abs.Abs(v).Cmp(unsigned[i]) != 0 {
			return fmt.Errorf("%w: |%s| != %s at position %d", ErrSignedValues, v, unsigned[i], i)
		}
	}
	if !negative {
		return fmt.Errorf("%w: no negative member", ErrSignedValues)
	}
	return nil
}

// parseBFileContent parses b-file text: one index/value pair per line, with
// comment lines starting with # and blank lines skipped. Indexes must be
// consecutive. Parsing stops at the first malformed line or index gap,
// keeping whatever was collected up to that point.
func parseBFileContent(content string, found reporter) (firstIndex *int, values []*big.Int) {
	var (
		first     int
		haveFirst bool
		last      int
	)
	for nr, line := range strings.Split(content, "\n") {
		lineNr := nr + 1
		if strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := bfileLinePattern.FindStringSubmatch(line)
		if m == nil {
			found(IssueUnparseableBFileLine, "The b-file line %d cannot be parsed: '%s'.", lineNr, line)
			break
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			found(IssueUnparseableBFileLine, "The b-file line %d cannot be parsed: '%s'.", lineNr, line)
			break
		}
		if haveFirst && index != last+1 {
			found(IssueNonSequentialIndexes,
				"The b-file line %d has indexes that are non-sequential; %d follows %d; terminating parse.",
				lineNr, index, last)
			break
		}
		value, ok := new(big.Int).SetString(m[2], 10)
		if !ok {
			found(IssueUnparseableBFileLine, "The b-file line %d cannot be parsed: '%s'.", lineNr, line)
			break
		}

		if !haveFirst {
			first = index
			haveFirst = true
		}
		last = index
		values = append(values, value)
	}

	if !haveFirst {
		return nil, values
	}
	return &first, values
}

// singleLine returns the value of a directive the order check guarantees to
// occur exactly once.
func singleLine(dv map[rune][]string, dir rune) string {
	return dv[dir][0]
}

func optionalSingleLine(dv map[rune][]string, dir rune) *string {
	vals, ok := dv[dir]
	if !ok {
		return nil
	}
	v := vals[0]
	return &v
}

// optionalMultiline joins the collected lines of a free-text directive, each
// terminated with a newline. Nil when the directive is absent.
func optionalMultiline(dv map[rune][]string, dir rune) *string {
	vals, ok := dv[dir]
	if !ok {
		return nil
	}
	s := strings.Join(vals, "\n") + "\n"
	return &s
}

func unacceptableRunes(value string, ok runeSet) []rune {
	var seen map[rune]struct{}
	for _, r := range value {
		if _, acceptable := ok[r]; !acceptable {
			if seen == nil {
				seen = make(map[rune]struct{})
			}
			seen[r] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	bad := make([]rune, 0, len(seen))
	for r := range seen {
		bad = append(bad, r)
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
	return bad
}

func formatRunes(rs []rune) string {
	quoted := make([]string, len(rs))
	for i, r := range rs {
		quoted[i] = strconv.QuoteRune(r)
	}
	return strings.Join(quoted, ", ")
}

// formatValues renders at most limit values in list form for diagnostics.
func formatValues(values []*big.Int, limit int) string {
	if len(values) > limit {
		values = values[:limit]
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
