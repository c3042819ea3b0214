// Package breakdown turns a task into small, concrete steps and decides
// when the user actually asked for that.
package breakdown

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxHistory = 4
	DefaultMaxSteps   = 7

	DefaultTimeEstimate  = "15-30 min"
	FallbackComplexity   = 5
	FallbackEstimateTime = "1-2 hours"

	generatorTemperature = 0.4
	generatorMaxTokens   = 1800
)

// Request describes the task to break down.
type Request struct {
	Task      string
	Context   string
	EFProfile []string
	History   []domain.ConversationTurn
}

// Result is always structurally valid: every step carries sub-steps.
type Result struct {
	Breakdown     []domain.Step `json:"breakdown"`
	Tips          []string      `json:"tips"`
	Complexity    int           `json:"complexity"`
	EstimatedTime string        `json:"estimatedTime"`
	Fallback      bool          `json:"-"`
}

type GeneratorConfig struct {
	Timeout    time.Duration
	MaxHistory int
	// MaxSteps trims longer plans. The prompt asks for 3-7 steps.
	MaxSteps   int
	Logger     *slog.Logger
}

func (c *GeneratorConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Generator struct {
	provider providers.Provider
	config   GeneratorConfig
}

func NewGenerator(provider providers.Provider, config *GeneratorConfig) *Generator {
	cfg := GeneratorConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()
	return &Generator{provider: provider, config: cfg}
}

// Generate never fails. Upstream errors and unusable output yield the
// fixed fallback plan.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	ctx, span := otel.Tracer("navia/breakdown").Start(ctx, "breakdown.Generate")
	defer span.End()

	result, err := g.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		g.config.Logger.Warn("breakdown generation failed, using fallback plan", "error", err)
		return FallbackResult()
	}
	span.SetAttributes(attribute.Int("navia.steps", len(result.Breakdown)))
	return result
}

func (g *Generator) generate(ctx context.Context, req Request) (Result, error) {
	if g.provider == nil {
		return Result{}, fmt.Errorf("no completion provider configured")
	}
	if strings.TrimSpace(req.Task) == "" {
		return Result{}, fmt.Errorf("empty task")
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	temperature := generatorTemperature
	resp, err := g.provider.Complete(ctx, &providers.Request{
		SystemPrompt: generatorSystemPrompt,
		Messages:     []providers.Message{providers.User(buildGeneratorPrompt(req, lastTurns(req.History, g.config.MaxHistory)))},
		MaxTokens:    generatorMaxTokens,
		Temperature:  &temperature,
		JSONMode:     true,
	})
	if err != nil {
		return Result{}, err
	}
	result, err := Parse(resp.Content)
	if err != nil {
		return Result{}, err
	}
	if n := len(result.Breakdown); n > g.config.MaxSteps {
		g.config.Logger.Info("trimming breakdown", "steps", n, "max_steps", g.config.MaxSteps)
		result.Breakdown = result.Breakdown[:g.config.MaxSteps]
	}
	return result, nil
}

type rawResult struct {
	Breakdown     json.RawMessage `json:"breakdown"`
	Tips          []string        `json:"tips"`
	Complexity    float64         `json:"complexity"`
	EstimatedTime string          `json:"estimatedTime"`
}

type rawStep struct {
	Title        string   `json:"title"`
	TimeEstimate string   `json:"timeEstimate"`
	SubSteps     []string `json:"subSteps"`
	IsOptional   bool     `json:"isOptional"`
	IsHard       bool     `json:"isHard"`
}

// Parse decodes a completion into a Result. The breakdown array is read as
// structured step objects first, then as the legacy flat string list.
func Parse(text string) (Result, error) {
	var raw rawResult
	if err := providers.DecodeJSON(text, &raw); err != nil {
		return Result{}, err
	}

	steps, err := parseStructured(raw.Breakdown)
	if err != nil {
		steps, err = parseLegacy(raw.Breakdown)
	}
	if err != nil {
		return Result{}, err
	}
	steps = EnsureSubSteps(steps)
	if len(steps) == 0 {
		return Result{}, fmt.Errorf("breakdown has no usable steps")
	}

	complexity := int(raw.Complexity + 0.5)
	if complexity <= 0 || complexity > 10 {
		complexity = FallbackComplexity
	}
	estimated := strings.TrimSpace(raw.EstimatedTime)
	if estimated == "" {
		estimated = FallbackEstimateTime
	}

	return Result{
		Breakdown:     steps,
		Tips:          nonEmpty(raw.Tips),
		Complexity:    complexity,
		EstimatedTime: estimated,
	}, nil
}

// parseStructured accepts an array whose elements are step objects. A
// plain string element inside the array is promoted the legacy way so one
// stray entry does not discard the whole plan.
func parseStructured(data json.RawMessage) ([]domain.Step, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("breakdown is not an array: %w", err)
	}

	steps := make([]domain.Step, 0, len(elems))
	objects := 0
	for _, elem := range elems {
		var rs rawStep
		if err := json.Unmarshal(elem, &rs); err == nil {
			objects++
			if strings.TrimSpace(rs.Title) == "" {
				continue
			}
			steps = append(steps, domain.Step{
				Title:        strings.TrimSpace(rs.Title),
				TimeEstimate: defaultEstimate(rs.TimeEstimate),
				SubSteps:     nonEmpty(rs.SubSteps),
				IsOptional:   rs.IsOptional,
				IsHard:       rs.IsHard,
			})
			continue
		}
		var title string
		if err := json.Unmarshal(elem, &title); err == nil {
			if step, ok := legacyStep(title); ok {
				steps = append(steps, step)
			}
		}
	}
	if objects == 0 {
		return nil, fmt.Errorf("breakdown has no step objects")
	}
	return steps, nil
}

// parseLegacy accepts the older flat format: an array of step titles.
func parseLegacy(data json.RawMessage) ([]domain.Step, error) {
	var titles []string
	if err := json.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("breakdown is neither step objects nor strings: %w", err)
	}
	steps := make([]domain.Step, 0, len(titles))
	for _, title := range titles {
		if step, ok := legacyStep(title); ok {
			steps = append(steps, step)
		}
	}
	return steps, nil
}

func legacyStep(title string) (domain.Step, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Step{}, false
	}
	return domain.Step{
		Title:        title,
		TimeEstimate: DefaultTimeEstimate,
		SubSteps:     []string{fmt.Sprintf("Work through %q", title)},
	}, true
}

// EnsureSubSteps fills every step that has no sub-steps with the generic
// read, split, do, check sequence derived from its title.
func EnsureSubSteps(steps []domain.Step) []domain.Step {
	for i := range steps {
		if len(steps[i].SubSteps) == 0 {
			steps[i].SubSteps = GenericSubSteps(steps[i].Title)
		}
	}
	return steps
}

func GenericSubSteps(title string) []string {
	return []string{
		fmt.Sprintf("Read through what %q involves", title),
		fmt.Sprintf("Split %q into the smallest first action", title),
		fmt.Sprintf("Do the first action for %q", title),
		fmt.Sprintf("Check that %q is done", title),
	}
}

// FallbackResult is the fixed plan returned whenever generation fails.
func FallbackResult() Result {
	return Result{
		Breakdown: []domain.Step{
			{
				Title:        "Research your options",
				TimeEstimate: "20-30 min",
				SubSteps: []string{
					"Write down what you need to figure out",
					"Look up two or three options and note the key differences",
				},
			},
			{
				Title:        "Decide and take action",
				TimeEstimate: "15-30 min",
				SubSteps: []string{
					"Pick the option that feels most doable right now",
					"Take the first small action toward it",
				},
				IsHard: true,
			},
			{
				Title:        "Complete and review",
				TimeEstimate: "15-20 min",
				SubSteps: []string{
					"Finish the remaining pieces one at a time",
					"Check what worked and note anything left for later",
				},
			},
		},
		Tips: []string{
			"Set a timer and focus on one step at a time",
			"It's okay to take breaks between steps",
		},
		Complexity:    FallbackComplexity,
		EstimatedTime: FallbackEstimateTime,
		Fallback:      true,
	}
}

func defaultEstimate(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return DefaultTimeEstimate
}

func nonEmpty(items []string) []string {
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func lastTurns(history []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if n > 0 && len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
