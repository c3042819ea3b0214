package classifier

import (
	"fmt"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const systemPrompt = `You are the intent router for Navia, an executive-function coach for neurodivergent adults.
Classify the user's message into one or more coaching domains:
- finance: budgeting, debt, saving, investing, bills, credit, taxes, money apps
- career: job search, resumes, interviews, workplace issues, salary, skills
- daily_task: routines, chores, focus, procrastination, organization, anything else

Routing rules:
1. Short follow-ups that use pronouns or vague references ("that", "it", "more", "what about that one") continue the domain of the MOST RECENT EXCHANGE unless they introduce unmistakable vocabulary from another domain.
2. Return several domains when the message clearly spans them, for example looking for a job and sorting out a budget.
3. When nothing fits, use daily_task.

Respond with JSON only:
{"domains": ["finance"|"career"|"daily_task", ...], "confidence": 0.0-1.0, "needsBreakdown": true|false, "complexity": 0-10, "reasoning": "one sentence"}`

// buildPrompt renders the query with its conversation window. The most
// recent exchange gets its own block because it resolves pronouns.
func buildPrompt(query string, window []domain.ConversationTurn, followUp bool) string {
	var b strings.Builder

	earlier, recent := splitRecentExchange(window)

	if len(earlier) > 0 {
		b.WriteString("EARLIER CONVERSATION:\n")
		for _, turn := range earlier {
			writeTurn(&b, turn)
		}
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("=== MOST RECENT EXCHANGE (strongest signal for what the user means) ===\n")
		for _, turn := range recent {
			writeTurn(&b, turn)
		}
		b.WriteString("=== END MOST RECENT EXCHANGE ===\n\n")
	}

	if followUp {
		b.WriteString("This message looks like a follow-up in the current session.\n")
	}
	fmt.Fprintf(&b, "USER MESSAGE: %s\n", strings.TrimSpace(query))

	return b.String()
}

// splitRecentExchange separates the last user/assistant pair from the rest.
func splitRecentExchange(window []domain.ConversationTurn) (earlier, recent []domain.ConversationTurn) {
	if len(window) == 0 {
		return nil, nil
	}

	last := len(window) - 1
	start := last
	if window[last].Role == domain.RoleAssistant && last > 0 && window[last-1].Role == domain.RoleUser {
		start = last - 1
	}
	return window[:start], window[start:]
}

func writeTurn(b *strings.Builder, turn domain.ConversationTurn) {
	speaker := "User"
	if turn.Role == domain.RoleAssistant {
		speaker = "Assistant"
	}
	content := strings.TrimSpace(turn.Content)
	if turn.Domain != "" {
		fmt.Fprintf(b, "%s [%s]: %s\n", speaker, turn.Domain, content)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", speaker, content)
}
