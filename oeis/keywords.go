package oeis

// The recognized %K keywords. They are documented on http://oeis.org/eishelp2.html
// and, more up to date, on http://oeis.org/wiki/User:Charles_R_Greathouse_IV/Keywords.
var expectedKeywords = map[string]struct{}{
	"allocated":  {},
	"allocating": {},
	"base":       {},
	"bref":       {},
	"changed":    {},
	"cofr":       {},
	"cons":       {},
	"core":       {},
	"dead":       {},
	"dumb":       {},
	"dupe":       {},
	"easy":       {},
	"eigen":      {},
	"fini":       {},
	"frac":       {},
	"full":       {},
	"hard":       {},
	"hear":       {},
	"less":       {},
	"look":       {},
	"more":       {},
	"mult":       {},
	"new":        {},
	"nice":       {},
	"nonn":       {},
	"obsc":       {},
	"probation":  {},
	"recycled":   {},
	"sign":       {},
	"tabf":       {},
	"tabl":       {},
	"uned":       {},
	"unkn":       {},
	"walk":       {},
	"word":       {},
}

// Keywords that mark an entry as a placeholder rather than a live sequence.
// They must occur alone, and their presence relaxes several other checks.
var entryStateKeywords = map[string]struct{}{
	"allocated":  {},
	"allocating": {},
	"dead":       {},
	"recycled":   {},
}

func hasEntryStateKeyword(keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := entryStateKeywords[kw]; ok {
			return true
		}
	}
	return false
}
