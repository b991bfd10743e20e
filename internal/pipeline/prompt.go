package pipeline

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// maxHistoryChars bounds each history message quoted in the prompt.
const maxHistoryChars = 300

// BuildPrompt assembles the generation prompt from the question, the
// classified intent, the serialized context and prior turns.
func BuildPrompt(question string, result *domain.IntentResult, contextText string, history []*domain.ConversationTurn) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Lịch sử hội thoại:\n")
		for _, t := range history {
			text := t.Message
			if t.Role == domain.RoleAssistant && t.Answer != "" {
				text = t.Answer
			}
			fmt.Fprintf(&b, "%s: %s\n", t.Role, truncate(oneLine(text), maxHistoryChars))
		}
		b.WriteByte('\n')
	}

	intent := domain.IntentGeneral
	if result != nil {
		intent = result.PrimaryIntent
	}
	fmt.Fprintf(&b, "Ý định: %s\n", intent)
	if result != nil && len(result.Entities) > 0 {
		parts := make([]string, 0, len(result.Entities))
		for _, e := range result.Entities {
			parts = append(parts, fmt.Sprintf("%s=%s", e.Type, e.Value))
		}
		fmt.Fprintf(&b, "Thực thể: %s\n", strings.Join(parts, ", "))
	}

	b.WriteString("Dữ liệu:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nCâu hỏi: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
