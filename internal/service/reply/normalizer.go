// Package reply turns generator output into the text sent back to the client.
package reply

import (
	"errors"
	"regexp"
	"strings"
)

// ClosingText ends every closed session.
const ClosingText = "We'll leave it there. You can start another session if and when you choose."

// ErrEmptyGeneratorOutput means the generator returned no usable text.
var ErrEmptyGeneratorOutput = errors.New("generator returned no text")

// closingSentences matches the closing text as models tend to echo it, with either
// apostrophe. Only whole sentences match: the phrase must start the text, a line, or
// follow a sentence end, and must end with its period. The prefix is kept by the
// replacement.
var closingSentences = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|[.!?]\s+|\n)[ \t]*we[’']ll leave it there\.`),
	regexp.MustCompile(`(?i)(^|[.!?]\s+|\n)[ \t]*you can start another session if and when you choose\.`),
}

var (
	spaceRuns     = regexp.MustCompile(`[ \t]{2,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// Normalize flattens the generator result, removes any closing text the model wrote
// itself, and appends ClosingText once after a blank line when final is set.
func Normalize(result Fragment, final bool) (string, error) {
	text, _ := Flatten(result)
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyGeneratorOutput
	}

	text = StripClosing(text)
	if final {
		return AppendClosing(text), nil
	}
	if text == "" {
		return "", ErrEmptyGeneratorOutput
	}
	return text, nil
}

// StripClosing removes every occurrence of the closing sentences and tidies the
// whitespace they leave behind. Text without them is returned trimmed but otherwise
// untouched.
func StripClosing(text string) string {
	stripped := text
	for _, re := range closingSentences {
		stripped = re.ReplaceAllString(stripped, "${1}")
	}
	if stripped == text {
		return strings.TrimSpace(text)
	}

	stripped = spaceRuns.ReplaceAllString(stripped, " ")
	stripped = trailingSpace.ReplaceAllString(stripped, "\n")
	stripped = blankRuns.ReplaceAllString(stripped, "\n\n")
	return strings.TrimSpace(stripped)
}

// AppendClosing appends ClosingText after a blank line. An empty body yields the
// closing text alone.
func AppendClosing(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ClosingText
	}
	return text + "\n\n" + ClosingText
}
