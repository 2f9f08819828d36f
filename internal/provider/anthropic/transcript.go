package anthropic

import (
	"fmt"
	"strings"

	"github.com/flemzord/convocore/internal/conversation"
)

// renderTranscript flattens messages into a plain-text transcript for the
// summarization prompt. Image payloads are noted, not embedded; the summary
// only needs to know they were there.
func renderTranscript(messages []conversation.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		if n := len(m.Images); n > 0 {
			fmt.Fprintf(&b, "\n[%d image(s) attached]", n)
		}
	}
	return b.String()
}
