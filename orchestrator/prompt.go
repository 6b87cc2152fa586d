package orchestrator

import (
	"strings"

	"github.com/mrsingh-rishi/voice-relay/model"
)

// Preamble opens every generation prompt.
const Preamble = "You are a kind and generous chatbot."

// FallbackText is the reply used when no answer could be generated.
const FallbackText = "I'm really sorry, I couldn’t find the perfect answer right now — but I'm here if you'd like to try again!"

// ComposePrompt joins the passage texts into a context block and wraps it
// with the preamble and the literal query. With no passages the block is
// empty.
func ComposePrompt(passages []model.RetrievedPassage, query string) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	var b strings.Builder
	b.WriteString(Preamble)
	b.WriteString("\nContext:\n")
	b.WriteString(strings.Join(texts, "\n"))
	b.WriteString("\nUser: ")
	b.WriteString(query)
	return b.String()
}
