package dailytask

import (
	"context"
	"testing"

	"github.com/SankrityaT/Navia-sub000/agents/coach"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTone(t *testing.T) {
	tests := []struct {
		name string
		uc   *domain.UserContext
		want string
	}{
		{"no context", nil, balancedTone},
		{"low", &domain.UserContext{EnergyLevel: "Low"}, lowEnergyTone},
		{"exhausted", &domain.UserContext{EnergyLevel: "exhausted"}, lowEnergyTone},
		{"high", &domain.UserContext{EnergyLevel: "high"}, highEnergyTone},
		{"medium", &domain.UserContext{EnergyLevel: "medium"}, balancedTone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tone(tt.uc))
		})
	}
}

func TestNew_LowEnergyPrompt(t *testing.T) {
	provider := providers.NewScripted(providers.Rule{Match: "daily task coach", Reply: `{"summary": "Just clear one plate."}`})

	resp, err := New(coach.Deps{Provider: provider}, nil).Run(context.Background(), domain.AgentRequest{
		Query:       "my kitchen is a disaster",
		UserContext: &domain.UserContext{EnergyLevel: "low", EFChallenges: []string{"task initiation"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DomainDailyTask, resp.Domain)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[0].Content
	assert.Contains(t, prompt, lowEnergyTone)
	assert.Contains(t, prompt, "task initiation")
}

func TestKeywordsTriggerStrategies(t *testing.T) {
	f := Profile().Fetchers[0]
	assert.True(t, f.Triggered("I keep procrastinating on laundry"))
	assert.True(t, f.Triggered("Help me organize my desk"))
	assert.False(t, f.Triggered("what is a 401k"))
}
