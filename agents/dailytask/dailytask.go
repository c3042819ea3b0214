// Package dailytask is the everyday life coaching agent: routines, chores,
// focus and getting started. It adapts its tone to the user's energy.
package dailytask

import (
	"strings"

	"github.com/SankrityaT/Navia-sub000/agents/coach"
	"github.com/SankrityaT/Navia-sub000/core/domain"
)

const SystemPrompt = `You are Navia's daily task coach for neurodivergent adults (ADHD, autism, executive function differences).

You help with routines, chores, cleaning, errands, time blindness, focus and getting started on things. You also handle general questions that fit nowhere else.
- Lower the activation energy: the first step should feel almost too easy.
- Suggest body doubling, timers, visual cues and "good enough" standards.
- Celebrate partial progress. Never imply the user is lazy.`

var Allowlist = []string{
	"additudemag.com",
	"understood.org",
	"chadd.org",
	"healthline.com",
	"verywellmind.com",
}

var Keywords = []string{
	"clean", "routine", "focus", "procrastinat", "organiz", "organis",
	"morning", "chore", "laundry", "dishes", "habit", "motivat",
	"overwhelm", "declutter", "schedule", "time blind",
}

const (
	lowEnergyTone  = "The user's energy is low. Be extra gentle, keep the answer short and offer only tiny steps that take a couple of minutes. Make it clear that resting is a valid choice."
	highEnergyTone = "The user's energy is high. Match it with an upbeat, momentum-building tone and suggest tackling a meaningful chunk while the energy lasts."
	balancedTone   = "Use a calm, encouraging tone with manageable steps."
)

// Tone adjusts the answer to the self-reported energy level.
func Tone(uc *domain.UserContext) string {
	if uc == nil {
		return balancedTone
	}
	switch strings.ToLower(strings.TrimSpace(uc.EnergyLevel)) {
	case "low", "very low", "exhausted", "tired":
		return lowEnergyTone
	case "high", "very high", "energized", "energised":
		return highEnergyTone
	default:
		return balancedTone
	}
}

func Profile() coach.Profile {
	return coach.Profile{
		Domain:           domain.DomainDailyTask,
		SystemPrompt:     SystemPrompt,
		BreakdownContext: "everyday task for someone with executive function challenges",
		Fetchers: []coach.Fetcher{{
			Name:         "adhd-strategies",
			Keywords:     Keywords,
			Allowlist:    Allowlist,
			QuerySuffix:  "ADHD strategies",
			ResourceType: domain.ResourceArticle,
			MaxResults:   3,
		}},
		Tone: Tone,
	}
}

func New(deps coach.Deps, config *coach.Config) *coach.Agent {
	return coach.New(Profile(), deps, config)
}
