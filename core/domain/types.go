package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserContext is the optional self-reported profile sent with a query.
type UserContext struct {
	EnergyLevel         string             `json:"energyLevel,omitempty" yaml:"energy_level,omitempty"`
	EFChallenges        []string           `json:"efChallenges,omitempty" yaml:"ef_challenges,omitempty"`
	Goals               []string           `json:"goals,omitempty" yaml:"goals,omitempty"`
	CommunicationStyle  string             `json:"communicationStyle,omitempty" yaml:"communication_style,omitempty"`
	SessionID           string             `json:"sessionId,omitempty" yaml:"session_id,omitempty"`
	SessionMessageCount int                `json:"sessionMessageCount,omitempty" yaml:"session_message_count,omitempty"`
	RecentHistory       []ConversationTurn `json:"recentHistory,omitempty" yaml:"recent_history,omitempty"`
}

// Clone returns a deep copy so agents never share slices.
func (u *UserContext) Clone() *UserContext {
	if u == nil {
		return nil
	}
	clone := *u
	clone.EFChallenges = append([]string(nil), u.EFChallenges...)
	clone.Goals = append([]string(nil), u.Goals...)
	clone.RecentHistory = append([]ConversationTurn(nil), u.RecentHistory...)
	return &clone
}

// Query is one orchestration request. Immutable per call.
type Query struct {
	Text        string       `json:"query"`
	UserID      string       `json:"userId"`
	UserContext *UserContext `json:"userContext,omitempty"`
}

// ConversationTurn is a single message in a user's chat history.
type ConversationTurn struct {
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Domain          string    `json:"domain,omitempty"`
	SessionID       string    `json:"sessionId,omitempty"`
	IsSemanticMatch bool      `json:"isSemanticMatch,omitempty"`
}

// IntentDetection is produced once per orchestration call and never mutated.
type IntentDetection struct {
	Domains        []Domain `json:"domains"`
	Confidence     float64  `json:"confidence"`
	Complexity     int      `json:"complexity"`
	NeedsBreakdown bool     `json:"needsBreakdown"`
	Reasoning      string   `json:"reasoning"`
}

// Step is one unit of a task breakdown. A valid Step has at least one sub-step.
type Step struct {
	Title        string   `json:"title"`
	TimeEstimate string   `json:"timeEstimate"`
	SubSteps     []string `json:"subSteps"`
	IsOptional   bool     `json:"isOptional"`
	IsHard       bool     `json:"isHard"`
}

func (s Step) IsValid() bool {
	return strings.TrimSpace(s.Title) != "" && len(s.SubSteps) > 0
}

// ResourceType classifies a ResourceLink.
type ResourceType string

const (
	ResourceArticle  ResourceType = "article"
	ResourceTool     ResourceType = "tool"
	ResourceGuide    ResourceType = "guide"
	ResourceTemplate ResourceType = "template"
	ResourceVideo    ResourceType = "video"
)

// ParseResourceType maps unknown types to article.
func ParseResourceType(s string) ResourceType {
	switch t := ResourceType(strings.ToLower(strings.TrimSpace(s))); t {
	case ResourceArticle, ResourceTool, ResourceGuide, ResourceTemplate, ResourceVideo:
		return t
	default:
		return ResourceArticle
	}
}

type ResourceLink struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Description string       `json:"description"`
	Type        ResourceType `json:"type"`
}

type SourceReference struct {
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance,omitempty"`
}

// AgentMetadata carries the per-agent decision flags.
type AgentMetadata struct {
	Confidence       float64  `json:"confidence"`
	Complexity       int      `json:"complexity"`
	NeedsBreakdown   bool     `json:"needsBreakdown"`
	ShowResources    bool     `json:"showResources"`
	SuggestedActions []string `json:"suggestedActions,omitempty"`
	ExplicitRequest  bool     `json:"explicitBreakdownRequest,omitempty"`
	ElapsedMs        int64    `json:"elapsedMs,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// AgentResponse is the output of one domain agent.
type AgentResponse struct {
	Domain        Domain            `json:"domain"`
	Summary       string            `json:"summary"`
	Breakdown     []Step            `json:"breakdown,omitempty"`
	BreakdownTips []string          `json:"breakdownTips,omitempty"`
	Resources     []ResourceLink    `json:"resources"`
	Sources       []SourceReference `json:"sources"`
	Metadata      AgentMetadata     `json:"metadata"`
}

func (r *AgentResponse) HasBreakdown() bool {
	return len(r.Breakdown) > 0
}

// OrchestrationMetadata describes how a result was produced.
type OrchestrationMetadata struct {
	DomainsInvolved []Domain `json:"domainsInvolved"`
	ExecutionTimeMs int64    `json:"executionTimeMs"`
	UsedBreakdown   bool     `json:"usedBreakdown"`
	NeedsBreakdown  bool     `json:"needsBreakdown"`
	Confidence      float64  `json:"confidence"`
	Complexity      int      `json:"complexity"`
	MultiAgent      bool     `json:"multiAgent"`
	RequestID       string   `json:"requestId,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// OrchestrationResult is the caller-facing aggregate.
type OrchestrationResult struct {
	Success         bool                  `json:"success"`
	Responses       []AgentResponse       `json:"responses"`
	CombinedSummary string                `json:"combinedSummary,omitempty"`
	Breakdown       []Step                `json:"breakdown,omitempty"`
	BreakdownTips   []string              `json:"breakdownTips,omitempty"`
	Resources       []ResourceLink        `json:"resources"`
	Sources         []SourceReference     `json:"sources"`
	Metadata        OrchestrationMetadata `json:"metadata"`
}

// Summary returns the text a UI should show: the combined summary when
// several agents answered, otherwise the single agent's summary.
func (r *OrchestrationResult) Summary() string {
	if r.CombinedSummary != "" {
		return r.CombinedSummary
	}
	if len(r.Responses) > 0 {
		return r.Responses[0].Summary
	}
	return ""
}

// AgentRequest is the input handed to one domain agent. History is the
// bounded window of past turns the orchestrator fetched for the user.
type AgentRequest struct {
	UserID      string             `json:"userId"`
	Query       string             `json:"query"`
	UserContext *UserContext       `json:"userContext,omitempty"`
	History     []ConversationTurn `json:"history,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r AgentRequest) Clone() AgentRequest {
	clone := r
	clone.UserContext = r.UserContext.Clone()
	clone.History = append([]ConversationTurn(nil), r.History...)
	return clone
}
