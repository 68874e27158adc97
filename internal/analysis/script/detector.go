package script

import "unicode"

// Label names a writing system counted by the detector.
type Label string

const (
	Latin      Label = "latin"
	Hangul     Label = "hangul"
	Han        Label = "han"
	Hiragana   Label = "hiragana"
	Katakana   Label = "katakana"
	Cyrillic   Label = "cyrillic"
	Greek      Label = "greek"
	Arabic     Label = "arabic"
	Hebrew     Label = "hebrew"
	Thai       Label = "thai"
	Devanagari Label = "devanagari"
)

// Thresholds below which a text is never considered mixed. Short phrases, names
// and loanwords stay under them.
const (
	MinLatinLetters = 20
	MinOtherLetters = 10
)

var nonLatinTables = []struct {
	label Label
	table *unicode.RangeTable
}{
	{Hangul, unicode.Hangul},
	{Han, unicode.Han},
	{Hiragana, unicode.Hiragana},
	{Katakana, unicode.Katakana},
	{Cyrillic, unicode.Cyrillic},
	{Greek, unicode.Greek},
	{Arabic, unicode.Arabic},
	{Hebrew, unicode.Hebrew},
	{Thai, unicode.Thai},
	{Devanagari, unicode.Devanagari},
}

// Decision is the outcome of scanning one text.
type Decision struct {
	Mixed  bool
	Latin  int
	Other  Label
	Counts map[Label]int
}

// Detect counts letters per script and reports a mix when the text holds at least
// MinLatinLetters Latin letters and at least MinOtherLetters from one other script.
func Detect(text string) Decision {
	counts := make(map[Label]int)
	for _, r := range text {
		if unicode.Is(unicode.Latin, r) && unicode.IsLetter(r) {
			counts[Latin]++
			continue
		}
		for _, entry := range nonLatinTables {
			if unicode.Is(entry.table, r) {
				counts[entry.label]++
				break
			}
		}
	}

	decision := Decision{Latin: counts[Latin], Counts: counts}

	best := 0
	for _, entry := range nonLatinTables {
		if n := counts[entry.label]; n > best {
			best = n
			decision.Other = entry.label
		}
	}

	decision.Mixed = decision.Latin >= MinLatinLetters && best >= MinOtherLetters
	return decision
}
