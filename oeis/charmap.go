package oeis

type runeSet map[rune]struct{}

// directiveRunes returns the 95 printable ASCII characters extended with the
// given runes.
func directiveRunes(extra string) runeSet {
	s := make(runeSet, 128)
	for r := rune(0x20); r <= 0x7e; r++ {
		s[r] = struct{}{}
	}
	for _, r := range extra {
		s[r] = struct{}{}
	}
	return s
}

// acceptableCharacters lists, per free-text directive, the characters that
// occur legitimately in that directive's value. The non-ASCII extensions were
// collected by scanning the full remote database; invisible and combining
// characters are kept in escaped form so the literals stay readable.
var acceptableCharacters = map[rune]runeSet{
	'N': directiveRunes(" ­°´·ºÁÃ×àáäåèéíîóöøúüĀńőŜσωआटभयर्ṭ’•…∈≤≥⌈⌉"),
	'C': directiveRunes("¢£§«°±²´·º»½ÁÇ×ÜßàáäåçèéëíîïñòóôõöøùúüýāăćčęěħıłńőřśşšťžΧβγμπρστωϱавдеилмнопрстучшыьяաבוכלᵣᵤḠ​—‘’“”…′ℕ↑⇒∈∏∑∞∩∫≅≈≠≤≥⊂⊆⊗⌈⌉　八發ﬁﬂ\uFEFF\U0001d4a9\U0001d4c1"),
	'D': directiveRunes("\x7f§«°±´¸»ÁÇÉÖ×ÚÜßàáäåçèéêëíîïñóôõöøùúüýăąćČčěłńőŒřŚŞşŠšũūżžǎ́Λλμπϕ  ‎‐—’“”…∞∪≡"),
	'H': directiveRunes("£§©«®°±´µ·»ÁÂÃÅÆÉÕÖ×ÚÜßàáâäåçèéêëíîïñòóôõöøúûüýĀāăćČčěğĭıłńņňőœřśşŠšţūŽžΓΔΛΣΨαβγδζθπστφωϕНРСагдезийклнопрстхчыяאבגדוכלקרשתṭ‎—’“”…∏∑√∣≡⌊⌋"),
	'F': directiveRunes("°²´·ºÁÇ×ÜàáäçèéêíñóôöøúüćńőřşžΓβλ‐‘’”…∞≍≤≥⌈⌉　\uFEFF"),
	'e': directiveRunes("¢¨¯°´·×ßáäçèéíôöüīńβλρω​—‘’“”•…∆⊗│"),
	'p': directiveRunes("Äéóöø‘’"),
	't': directiveRunes("®°¹¼×áçèéíñóöúüŠπ… √≠≤≥　"),
	'o': directiveRunes("£«¯´·»Áßáäçèéêíîïðòö÷üπ“”…€←∪≠⊤⌊⌿⍳⍴⍸○"),
	'Y': directiveRunes("ßáéñöøńőΧ’…⊂　"),
	'A': directiveRunes("ÁÅÆÇÉØÜßàáâäçèéëíñóôöøúüČńņőşš"),
	'E': directiveRunes("´ÁÉßàáãäçèéíñóôöøüýčěłńőš’"),
}
