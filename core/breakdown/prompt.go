package breakdown

import (
	"fmt"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const generatorSystemPrompt = `You are Navia's task breakdown specialist. You help neurodivergent adults turn an overwhelming task into small, concrete, doable steps.

Rules:
- Produce between 3 and 7 top-level steps.
- Every step needs 2-5 sub-steps, each a single physical or mental action that takes under 10 minutes.
- Mark steps that can be skipped with "isOptional": true and draining or tricky steps with "isHard": true.
- Use warm, plain language. No jargon, no judgement.

Respond with JSON only:
{
  "breakdown": [
    {"title": "...", "timeEstimate": "10-15 min", "subSteps": ["...", "..."], "isOptional": false, "isHard": false}
  ],
  "tips": ["..."],
  "complexity": 1-10,
  "estimatedTime": "total time, e.g. 1-2 hours"
}`

const detectorSystemPrompt = `You decide whether the user explicitly asked for a plan, steps, a checklist or a breakdown.

Only answer true when the CURRENT MESSAGE itself asks for steps or a plan ("break this down", "give me steps", "make a plan for that"). Questions asking for information, advice or opinions are false even when the topic is complex. Use the conversation only to resolve words like "that" or "this"; never treat an earlier request as the current one.

Respond with JSON only: {"explicitRequest": true|false}`

const analyzerSystemPrompt = `You are a task complexity analyst. Rate how hard the user's request is to act on for someone with executive function challenges.

Respond with JSON only:
{"complexity": 0-10, "needsBreakdown": true|false, "reasoning": "one short sentence"}`

var efDirectives = map[string]string{
	"task_initiation":      "make the very first sub-step almost effortless to start",
	"time_management":      "give realistic time estimates for every step",
	"working_memory":       "keep each sub-step self-contained so nothing has to be remembered",
	"organization":         "group related actions together and name where things go",
	"planning":             "order steps so each one unlocks the next",
	"focus":                "keep sub-steps short enough to finish in one sitting",
	"emotional_regulation": "acknowledge hard steps and suggest a pause after them",
}

func buildGeneratorPrompt(req Request, history []domain.ConversationTurn) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("RECENT CONVERSATION (resolve \"that\" or \"this\" against the latest exchange):\n")
		writeTurns(&b, history)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "TASK: %s\n", strings.TrimSpace(req.Task))
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		fmt.Fprintf(&b, "\nCONTEXT:\n%s\n", ctx)
	}

	if len(req.EFProfile) > 0 {
		b.WriteString("\nThe user has these executive function challenges: ")
		b.WriteString(strings.Join(req.EFProfile, ", "))
		b.WriteString(". Adjust step granularity accordingly")
		for _, challenge := range req.EFProfile {
			key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(challenge), " ", "_"))
			if directive, ok := efDirectives[key]; ok {
				fmt.Fprintf(&b, "; %s", directive)
			}
		}
		b.WriteString(".\n")
	}

	b.WriteString("\nBreak this task down now.")
	return b.String()
}

func buildDetectorPrompt(query string, history []domain.ConversationTurn) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("CONVERSATION (for resolving references only):\n")
		writeTurns(&b, history)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "CURRENT MESSAGE: %s", strings.TrimSpace(query))
	return b.String()
}

func writeTurns(b *strings.Builder, turns []domain.ConversationTurn) {
	for _, turn := range turns {
		speaker := "User"
		if turn.Role == domain.RoleAssistant {
			speaker = "Navia"
		}
		fmt.Fprintf(b, "%s: %s\n", speaker, strings.TrimSpace(turn.Content))
	}
}
