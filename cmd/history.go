package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/config"
	"github.com/SankrityaT/Navia-sub000/core/conversation"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/knowledge"
	"github.com/spf13/cobra"
)

var (
	historyUser    string
	historySession string
	historyDomain  string
	historyLimit   int
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored conversation history",
	Long: `List the most recent stored exchanges, oldest first.

Examples:
  navia history
  navia history --session s1
  navia history --domain finance -n 5
  navia history search "budget app"`,
	RunE: runHistory,
}

var historySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find past exchanges similar to text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historySearchCmd)

	historyCmd.PersistentFlags().StringVarP(&historyUser, "user", "u", DefaultCLIUser, "user id")
	historyCmd.PersistentFlags().StringVarP(&historySession, "session", "s", "", "only this session")
	historyCmd.PersistentFlags().StringVarP(&historyDomain, "domain", "d", "", "only this domain")
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 10, "maximum turns")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "output as JSON")
}

func withStore(ctx context.Context, fn func(conversation.Store) error) error {
	manager, dirs, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := manager.Get()

	_, embedder, err := newProviders(ctx, offlineLLM(cfg))
	if err != nil {
		return err
	}
	a := &app{cfg: cfg, logger: slog.Default()}
	defer a.Close()

	store, err := a.openStore(ctx, cfg.Conversation, dirs, embedder)
	if err != nil {
		return err
	}
	return fn(store)
}

func historyFilter() (conversation.Filter, error) {
	filter := conversation.Filter{Limit: historyLimit, SessionID: historySession}
	if historyDomain != "" {
		d, ok := domain.ParseDomain(historyDomain)
		if !ok {
			return filter, fmt.Errorf("unknown domain %q", historyDomain)
		}
		filter.Domain = d.String()
	}
	return filter, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	filter, err := historyFilter()
	if err != nil {
		return err
	}
	return withStore(cmd.Context(), func(store conversation.Store) error {
		turns, err := store.FetchRecent(cmd.Context(), historyUser, filter)
		if err != nil {
			return err
		}
		return printTurns(cmd.OutOrStdout(), turns)
	})
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	filter, err := historyFilter()
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")
	return withStore(cmd.Context(), func(store conversation.Store) error {
		turns, err := store.FetchSemantic(cmd.Context(), historyUser, query, filter)
		if err != nil {
			return err
		}
		return printTurns(cmd.OutOrStdout(), turns)
	})
}

func printTurns(w io.Writer, turns []domain.ConversationTurn) error {
	if historyJSON {
		return writeJSON(w, turns)
	}
	if len(turns) == 0 {
		fmt.Fprintln(w, "No conversation history.")
		return nil
	}
	for _, t := range turns {
		who := "You"
		if t.Role == domain.RoleAssistant {
			who = "Navia"
		}
		tag := ""
		if t.Domain != "" {
			tag = " [" + t.Domain + "]"
		}
		fmt.Fprintf(w, "%s %s%s: %s\n", t.Timestamp.Local().Format("2006-01-02 15:04"), who, tag, knowledge.Excerpt(t.Content, 200))
	}
	return nil
}

// offlineLLM swaps the chat provider for the scripted one so history
// commands work without chat credentials.
func offlineLLM(cfg *config.Config) *config.Config {
	clone := *cfg
	clone.LLM.Provider = "scripted"
	return &clone
}
