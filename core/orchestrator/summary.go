package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
)

// planPhrases point at a plan rendered elsewhere in the UI. In a combined
// summary they repeat once per domain, so they are removed.
var planPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*I'?ve (?:created|put together|made|prepared|built) (?:a|an|the|your) [^.!\n]*?(?:plan|breakdown|steps|checklist)[^.!\n]*?(?:below|above)[.!:]?`),
	regexp.MustCompile(`(?i)\s*(?:see|check out|take a look at|follow) the (?:step-by-step |detailed )?(?:plan|breakdown|steps|checklist) (?:below|above)[.!:]?`),
	regexp.MustCompile(`(?i)\s*here'?s (?:a|the|your) (?:step-by-step |simple )?(?:plan|breakdown)[^.!\n]*?(?:below|above)?[.!:]`),
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// StripPlanPhrases removes plan pointer sentences from a summary.
func StripPlanPhrases(summary string) string {
	for _, re := range planPhrases {
		summary = re.ReplaceAllString(summary, "")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(summary, "\n\n"))
}

// CombineSummaries renders one "## Label" section per response, in
// response order.
func CombineSummaries(responses []domain.AgentResponse) string {
	sections := make([]string, 0, len(responses))
	for _, r := range responses {
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", r.Domain.Label(), StripPlanPhrases(r.Summary)))
	}
	return strings.Join(sections, "\n\n")
}
