package rag

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/mayhapottabi/docchat/internal/db"
)

const systemInstruction = "You are a helpful assistant. Answer the user's question based only on the provided document context. " +
	"If the answer is not in the context, say so honestly. Do not make up information."

// Turn is a prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildMessages assembles the completion input: the system instruction
// with the retrieved chunks labelled by rank, then the history in order,
// then the new question.
func BuildMessages(chunks []db.ChunkResult, history []Turn, question string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: systemInstruction + "\n\nDocument context for this query:\n" + buildContext(chunks),
	})

	for _, t := range history {
		role := schema.User
		if t.Role == db.RoleAssistant {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: t.Content})
	}

	return append(messages, &schema.Message{Role: schema.User, Content: question})
}

func buildContext(chunks []db.ChunkResult) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
