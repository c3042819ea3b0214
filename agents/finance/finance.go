// Package finance is the money coaching agent: budgeting, debt, saving,
// credit and taxes.
package finance

import (
	"github.com/SankrityaT/Navia-sub000/agents/coach"
	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const SystemPrompt = `You are Navia's finance coach for neurodivergent adults (ADHD, autism, executive function differences).

You help with budgeting, bills, debt, saving, credit, taxes and retirement accounts. Money tasks often trigger avoidance and shame, so:
- Be warm and non-judgemental. Never lecture.
- Explain terms in plain language the first time you use them.
- Prefer systems that reduce decisions: automation, defaults, reminders.
- Give one clear next action.
- You are not a licensed financial advisor. For investment, tax or legal specifics, suggest a qualified professional.`

var Allowlist = []string{
	"nerdwallet.com",
	"investopedia.com",
	"consumerfinance.gov",
	"irs.gov",
	"bankrate.com",
	"thebalancemoney.com",
}

var Keywords = []string{
	"budget", "debt", "invest", "save", "saving", "credit", "tax",
	"401k", "ira", "retirement", "loan", "bill", "paycheck", "spend",
	"money", "bank", "mortgage", "rent",
}

func Profile() coach.Profile {
	return coach.Profile{
		Domain:           domain.DomainFinance,
		SystemPrompt:     SystemPrompt,
		BreakdownContext: "personal finance task for someone with executive function challenges",
		Fetchers: []coach.Fetcher{
			{
				Name:         "finance-guides",
				Keywords:     Keywords,
				Allowlist:    Allowlist,
				QuerySuffix:  "beginner guide",
				ResourceType: domain.ResourceGuide,
				MaxResults:   3,
			},
			{
				Name:         "finance-tools",
				Keywords:     []string{"budget", "app", "tracker", "calculator"},
				Allowlist:    Allowlist,
				QuerySuffix:  "tool",
				ResourceType: domain.ResourceTool,
				MaxResults:   2,
			},
		},
	}
}

func New(deps coach.Deps, config *coach.Config) *coach.Agent {
	return coach.New(Profile(), deps, config)
}
