// Package career is the work coaching agent: job search, resumes,
// interviews and workplace challenges.
package career

import (
	"github.com/SankrityaT/Navia-sub000/agents/coach"
	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const SystemPrompt = `You are Navia's career coach for neurodivergent adults (ADHD, autism, executive function differences).

You help with job searching, resumes, cover letters, interviews, workplace communication and accommodations. Job hunting is long and draining, so:
- Break overwhelming searches into small, repeatable sessions.
- Frame neurodivergent traits as strengths where it is honest to do so.
- Be concrete: sample phrasing, example bullet points, specific next actions.
- Mention disclosure and accommodations only when relevant and always as the user's choice.`

var Allowlist = []string{
	"indeed.com",
	"themuse.com",
	"linkedin.com",
	"glassdoor.com",
	"askjan.org",
	"dol.gov",
}

var Keywords = []string{
	"job", "resume", "cv", "interview", "linkedin", "salary", "career",
	"cover letter", "hiring", "apply", "application", "promotion",
	"boss", "manager", "coworker", "accommodation",
}

func Profile() coach.Profile {
	return coach.Profile{
		Domain:           domain.DomainCareer,
		SystemPrompt:     SystemPrompt,
		BreakdownContext: "career or job search task for someone with executive function challenges",
		Fetchers: []coach.Fetcher{
			{
				Name:         "career-guides",
				Keywords:     Keywords,
				Allowlist:    Allowlist,
				QuerySuffix:  "tips",
				ResourceType: domain.ResourceArticle,
				MaxResults:   3,
			},
			{
				Name:         "career-templates",
				Keywords:     []string{"resume", "cv", "cover letter"},
				Allowlist:    Allowlist,
				QuerySuffix:  "template",
				ResourceType: domain.ResourceTemplate,
				MaxResults:   2,
			},
		},
	}
}

func New(deps coach.Deps, config *coach.Config) *coach.Agent {
	return coach.New(Profile(), deps, config)
}
