package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomain_String(t *testing.T) {
	tests := []struct {
		domain   Domain
		expected string
	}{
		{DomainFinance, "finance"},
		{DomainCareer, "career"},
		{DomainDailyTask, "daily_task"},
		{Domain(999), "domain(999)"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.domain.String())
	}
}

func TestDomain_Label(t *testing.T) {
	assert.Equal(t, "Finance", DomainFinance.Label())
	assert.Equal(t, "Career", DomainCareer.Label())
	assert.Equal(t, "Daily Tasks", DomainDailyTask.Label())
}

func TestParseDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected Domain
		ok       bool
	}{
		{"finance", DomainFinance, true},
		{"career", DomainCareer, true},
		{"daily_task", DomainDailyTask, true},
		{"Daily-Task", DomainDailyTask, true},
		{" daily task ", DomainDailyTask, true},
		{"FINANCE", DomainFinance, true},
		{"health", Domain(0), false},
		{"", Domain(0), false},
	}

	for _, tc := range tests {
		got, ok := ParseDomain(tc.input)
		assert.Equal(t, tc.ok, ok, "ParseDomain(%q)", tc.input)
		if ok {
			assert.Equal(t, tc.expected, got, "ParseDomain(%q)", tc.input)
		}
	}
}

func TestParseDomains_DropsUnknownAndDuplicates(t *testing.T) {
	got := ParseDomains([]string{"career", "weather", "finance", "career"})
	assert.Equal(t, []Domain{DomainCareer, DomainFinance}, got)
}

func TestUniqueDomains(t *testing.T) {
	got := UniqueDomains([]Domain{DomainFinance, DomainFinance, DomainCareer, DomainFinance})
	assert.Equal(t, []Domain{DomainFinance, DomainCareer}, got)
	assert.Empty(t, UniqueDomains(nil))
}

func TestDomain_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal([]Domain{DomainCareer, DomainDailyTask})
	require.NoError(t, err)
	assert.JSONEq(t, `["career","daily_task"]`, string(data))

	var parsed []Domain
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, []Domain{DomainCareer, DomainDailyTask}, parsed)

	var bad Domain
	assert.Error(t, json.Unmarshal([]byte(`"weather"`), &bad))
}

func TestUserContext_CloneIsIndependent(t *testing.T) {
	original := &UserContext{
		EFChallenges:  []string{"time_blindness"},
		RecentHistory: []ConversationTurn{{Role: RoleUser, Content: "hi"}},
	}

	clone := original.Clone()
	clone.EFChallenges[0] = "changed"
	clone.RecentHistory[0].Content = "changed"

	assert.Equal(t, "time_blindness", original.EFChallenges[0])
	assert.Equal(t, "hi", original.RecentHistory[0].Content)

	var nilCtx *UserContext
	assert.Nil(t, nilCtx.Clone())
}

func TestParseResourceType(t *testing.T) {
	assert.Equal(t, ResourceTool, ParseResourceType("Tool"))
	assert.Equal(t, ResourceTemplate, ParseResourceType("template"))
	assert.Equal(t, ResourceArticle, ParseResourceType("podcast"))
}

func TestStep_IsValid(t *testing.T) {
	assert.True(t, Step{Title: "Pay rent", SubSteps: []string{"open app"}}.IsValid())
	assert.False(t, Step{Title: "Pay rent"}.IsValid())
	assert.False(t, Step{SubSteps: []string{"x"}}.IsValid())
}
