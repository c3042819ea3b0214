package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// =============================================================================
// Ask Command Flags
// =============================================================================

var (
	askUser       string
	askSession    string
	askEnergy     string
	askChallenges []string
	askGoals      []string
	askJSON       bool
	askNoSave     bool
)

const DefaultCLIUser = "local"

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask Navia a question",
	Long: `Route a question to the finance, career and daily task coaches and print
the merged answer. The exchange is saved to conversation history so follow-up
questions keep their context.

Examples:
  navia ask "I need to do my taxes but I don't know where to start"
  navia ask --energy low "how do I start cleaning my room"
  navia ask --session s1 "which one is simpler?"
  navia ask --json "should I pay off debt or save"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askUser, "user", "u", DefaultCLIUser, "user id for conversation history")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id")
	askCmd.Flags().StringVar(&askEnergy, "energy", "", "current energy level: low, medium, high")
	askCmd.Flags().StringSliceVar(&askChallenges, "challenge", nil, "executive function challenges, e.g. task_initiation")
	askCmd.Flags().StringSliceVar(&askGoals, "goal", nil, "goals to keep in mind")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the raw orchestration result as JSON")
	askCmd.Flags().BoolVar(&askNoSave, "no-save", false, "do not record the exchange in conversation history")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("question is required")
	}

	manager, dirs, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, manager.Get(), dirs, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	uc, err := askUserContext(ctx, a.store)
	if err != nil {
		return err
	}

	result := a.orchestrator.Orchestrate(ctx, askUser, query, uc)

	if !askNoSave && result.Success {
		rec := conversation.Record{
			UserID:    askUser,
			SessionID: askSession,
			Query:     query,
			Response:  result.Summary(),
		}
		if len(result.Metadata.DomainsInvolved) > 0 {
			rec.Domain = result.Metadata.DomainsInvolved[0].String()
		}
		if err := a.store.Append(ctx, rec); err != nil {
			a.logger.Warn("failed to store conversation turn", "error", err)
		}
	}

	out := cmd.OutOrStdout()
	if askJSON || !isTerminal(out) {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		printResult(out, &result)
	}

	if !result.Success {
		return fmt.Errorf("no coach could answer: %s", result.Metadata.Error)
	}
	return nil
}

// askUserContext builds the profile from flags. Within a session the
// message count comes from stored history so short replies are treated
// as follow-ups.
func askUserContext(ctx context.Context, store conversation.Store) (*domain.UserContext, error) {
	uc := &domain.UserContext{
		EnergyLevel:  askEnergy,
		EFChallenges: askChallenges,
		Goals:        askGoals,
		SessionID:    askSession,
	}
	if askSession == "" {
		return uc, nil
	}

	turns, err := store.FetchRecent(ctx, askUser, conversation.Filter{SessionID: askSession, Limit: 20})
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	uc.RecentHistory = turns
	uc.SessionMessageCount = len(turns)
	return uc, nil
}

// =============================================================================
// Output
// =============================================================================

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, result *domain.OrchestrationResult) {
	if !result.Success {
		fmt.Fprintln(w, "Sorry, none of the coaches could answer right now.")
		return
	}

	fmt.Fprintln(w, result.Summary())

	if len(result.Breakdown) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Plan:")
		for i, step := range result.Breakdown {
			marker := ""
			if step.IsHard {
				marker = " (hard)"
			} else if step.IsOptional {
				marker = " (optional)"
			}
			fmt.Fprintf(w, "  %d. %s [%s]%s\n", i+1, step.Title, step.TimeEstimate, marker)
			for _, sub := range step.SubSteps {
				fmt.Fprintf(w, "     - %s\n", sub)
			}
		}
		for _, tip := range result.BreakdownTips {
			fmt.Fprintf(w, "  tip: %s\n", tip)
		}
	}

	if len(result.Resources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Resources:")
		for _, r := range result.Resources {
			fmt.Fprintf(w, "  - %s <%s>\n", r.Title, r.URL)
		}
	}

	if len(result.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, s := range result.Sources {
			if s.URL != "" {
				fmt.Fprintf(w, "  - %s <%s>\n", s.Title, s.URL)
			} else {
				fmt.Fprintf(w, "  - %s\n", s.Title)
			}
		}
	}

	meta := result.Metadata
	fmt.Fprintf(w, "\n[%s | confidence %.2f | %dms]\n", joinDomains(meta.DomainsInvolved), meta.Confidence, meta.ExecutionTimeMs)
}

func joinDomains(domains []domain.Domain) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = d.Label()
	}
	return strings.Join(parts, ", ")
}
