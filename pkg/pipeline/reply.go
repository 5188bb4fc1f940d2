package pipeline

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoItemsMessage is sent when nothing in the message's images could be matched.
const NoItemsMessage = "No items detected. Try a clearer photo where the outfit fills most of the frame."

// FormatReply renders one text message per candidate, in detection order:
//
//	Jacket:
//	1. https://...
//	2. https://...
//
// A result without candidates renders NoItemsMessage.
func FormatReply(res *Result) []string {
	if res == nil || len(res.Candidates) == 0 {
		return []string{NoItemsMessage}
	}

	messages := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		var b strings.Builder
		b.WriteString(capitalize(c.ConceptName))
		b.WriteString(":\n")
		if len(c.TopLinks) == 0 {
			b.WriteString("No links found.\n")
		}
		for i, link := range c.TopLinks {
			fmt.Fprintf(&b, "%d. %s\n", i+1, link)
		}
		messages = append(messages, b.String())
	}
	return messages
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
