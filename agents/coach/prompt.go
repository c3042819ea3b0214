package coach

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/breakdown"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/knowledge"
)

const responseSchema = `Respond with JSON only:
{
  "summary": "your answer in markdown",
  "needsBreakdown": true|false,
  "showResources": true|false,
  "resources": [{"title": "...", "url": "...", "description": "...", "type": "article|tool|guide|template|video"}],
  "sources": [{"title": "...", "url": "...", "excerpt": "..."}],
  "suggestedActions": ["..."]%s
}`

const planExistsBlock = `A STEP-BY-STEP BREAKDOWN HAS ALREADY BEEN CREATED for this request and will be shown to the user as a separate checklist:
%s

- Copy this breakdown verbatim into a "breakdown" field of your JSON.
- Do NOT list or restate the steps in "summary". Briefly introduce the plan and encourage the user instead.
- Set "needsBreakdown" to false.`

const decideBlock = `No breakdown has been generated. Decide for yourself whether this request would benefit from a step-by-step breakdown the user could ask for next, and set "needsBreakdown" accordingly. Do not write out a full step list in "summary".`

func (a *Agent) buildPrompt(req domain.AgentRequest, g gathered, plan *breakdown.Result) string {
	var b strings.Builder

	if !g.history.IsEmpty() {
		b.WriteString("CONVERSATION CONTEXT (the current session is the strongest signal for follow-ups):\n")
		b.WriteString(g.history.Render())
		b.WriteString("\n")
	}

	if len(g.passages) > 0 {
		b.WriteString("RELEVANT KNOWLEDGE:\n")
		b.WriteString(knowledge.Render(g.passages))
		b.WriteString("\n")
	}

	if len(g.resources) > 0 {
		b.WriteString("EXTERNAL RESOURCES FOUND:\n")
		for _, r := range g.resources {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Description)
		}
		b.WriteString("\n")
	}

	if profile := renderUserContext(req.UserContext); profile != "" {
		b.WriteString("USER PROFILE:\n")
		b.WriteString(profile)
		b.WriteString("\n")
	}

	if a.profile.Tone != nil {
		if tone := a.profile.Tone(req.UserContext); tone != "" {
			fmt.Fprintf(&b, "TONE: %s\n\n", tone)
		}
	}

	if plan != nil {
		steps, _ := json.MarshalIndent(plan.Breakdown, "", "  ")
		fmt.Fprintf(&b, planExistsBlock, steps)
		b.WriteString("\n\n")
		fmt.Fprintf(&b, responseSchema, ",\n  \"breakdown\": [...]")
	} else {
		b.WriteString(decideBlock)
		b.WriteString("\n\n")
		fmt.Fprintf(&b, responseSchema, "")
	}

	fmt.Fprintf(&b, "\n\nUSER QUESTION: %s", strings.TrimSpace(req.Query))
	return b.String()
}

func renderUserContext(uc *domain.UserContext) string {
	if uc == nil {
		return ""
	}
	var b strings.Builder
	if uc.EnergyLevel != "" {
		fmt.Fprintf(&b, "- Energy level: %s\n", uc.EnergyLevel)
	}
	if len(uc.EFChallenges) > 0 {
		fmt.Fprintf(&b, "- Executive function challenges: %s\n", strings.Join(uc.EFChallenges, ", "))
	}
	if len(uc.Goals) > 0 {
		fmt.Fprintf(&b, "- Goals: %s\n", strings.Join(uc.Goals, ", "))
	}
	if uc.CommunicationStyle != "" {
		fmt.Fprintf(&b, "- Preferred communication style: %s\n", uc.CommunicationStyle)
	}
	return b.String()
}
