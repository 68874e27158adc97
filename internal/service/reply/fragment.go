package reply

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Fragment is one node of a generator result: either a Text leaf or a Container.
type Fragment interface {
	appendText(b *strings.Builder) bool
}

// Text is a text-bearing leaf.
type Text string

// Container groups fragments in document order.
type Container []Fragment

func (t Text) appendText(b *strings.Builder) bool {
	if t == "" {
		return false
	}
	b.WriteString(string(t))
	return true
}

func (c Container) appendText(b *strings.Builder) bool {
	found := false
	for _, child := range c {
		if child != nil && child.appendText(b) {
			found = true
		}
	}
	return found
}

// Flatten concatenates every text leaf in document order without separators.
func Flatten(f Fragment) (string, bool) {
	if f == nil {
		return "", false
	}
	var b strings.Builder
	found := f.appendText(&b)
	return b.String(), found
}

// FromMessage maps a chat model message onto a fragment tree: the plain content
// first, then the text parts of any multi-part content. Reasoning content is not
// part of the reply and is skipped.
func FromMessage(msg *schema.Message) Fragment {
	if msg == nil {
		return Container(nil)
	}

	parts := make(Container, 0, len(msg.MultiContent))
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			parts = append(parts, Text(part.Text))
		}
	}
	return Container{Text(msg.Content), parts}
}
