package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/knowledge"
	"github.com/spf13/cobra"
)

// =============================================================================
// Index Command Flags
// =============================================================================

var (
	indexJSON   bool
	indexDomain string
	indexLimit  int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the knowledge index",
	Long: `Manage the bleve index of reference passages the coaches cite.

Passages are loaded from YAML seed files:

  domain: finance
  passages:
    - title: Zero-based budgeting
      url: https://www.nerdwallet.com/article/finance/zero-based-budgeting
      content: Give every dollar a job...`,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	RunE:  runIndexStatus,
}

var indexAddCmd = &cobra.Command{
	Use:   "add <seed-dir>",
	Short: "Add seed passages to the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexAdd,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild <seed-dir>",
	Short: "Delete the index and rebuild it from seed passages",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexRebuild,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the index the way a coach would",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexQuery,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexStatusCmd, indexAddCmd, indexRebuildCmd, indexQueryCmd)

	indexCmd.PersistentFlags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexQueryCmd.Flags().StringVarP(&indexDomain, "domain", "d", "daily_task", "domain to search: finance, career, daily_task")
	indexQueryCmd.Flags().IntVarP(&indexLimit, "limit", "n", knowledge.DefaultLimit, "maximum passages")
}

// =============================================================================
// Command Implementations
// =============================================================================

func withIndex(fn func(idx *knowledge.Index) error) error {
	manager, dirs, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(manager.Get().Knowledge, dirs)
	if err != nil {
		return err
	}
	defer idx.Close()
	return fn(idx)
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	return withIndex(func(idx *knowledge.Index) error {
		return indexStatus(cmd.OutOrStdout(), idx)
	})
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	return withIndex(func(idx *knowledge.Index) error {
		return indexAdd(cmd.Context(), cmd.OutOrStdout(), idx, args[0])
	})
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	manager, dirs, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := manager.Get().Knowledge

	// Load first so a bad seed directory never leaves an empty index behind.
	if _, err := knowledge.LoadSeedDir(args[0]); err != nil {
		return err
	}

	idx, err := openIndex(cfg, dirs)
	if err != nil {
		return err
	}
	path := idx.Path()
	if err := idx.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	idx, err = openIndex(cfg, dirs)
	if err != nil {
		return err
	}
	defer idx.Close()
	return indexAdd(cmd.Context(), cmd.OutOrStdout(), idx, args[0])
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	d, ok := domain.ParseDomain(indexDomain)
	if !ok {
		return fmt.Errorf("unknown domain %q", indexDomain)
	}
	text := strings.Join(args, " ")
	return withIndex(func(idx *knowledge.Index) error {
		return indexQuery(cmd.Context(), cmd.OutOrStdout(), idx, text, d, indexLimit)
	})
}

// =============================================================================
// Helpers
// =============================================================================

type indexStatusReport struct {
	Path      string `json:"path"`
	Documents uint64 `json:"documents"`
}

func indexStatus(w io.Writer, idx *knowledge.Index) error {
	count, err := idx.Count()
	if err != nil {
		return err
	}
	report := indexStatusReport{Path: idx.Path(), Documents: count}
	if indexJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Index:     %s\n", report.Path)
	fmt.Fprintf(w, "Documents: %d\n", report.Documents)
	return nil
}

func indexAdd(ctx context.Context, w io.Writer, idx *knowledge.Index, dir string) error {
	passages, err := knowledge.LoadSeedDir(dir)
	if err != nil {
		return err
	}
	if err := idx.Add(ctx, passages); err != nil {
		return fmt.Errorf("index passages: %w", err)
	}

	perDomain := make(map[string]int)
	for _, p := range passages {
		perDomain[p.Domain.String()]++
	}
	if indexJSON {
		return writeJSON(w, map[string]any{"indexed": len(passages), "domains": perDomain})
	}
	fmt.Fprintf(w, "Indexed %d passages from %s\n", len(passages), dir)
	for _, d := range domain.ValidDomains() {
		if n := perDomain[d.String()]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", d.Label(), n)
		}
	}
	return nil
}

func indexQuery(ctx context.Context, w io.Writer, idx *knowledge.Index, text string, d domain.Domain, limit int) error {
	passages, err := idx.Retrieve(ctx, text, d, limit)
	if err != nil {
		return err
	}
	if indexJSON {
		return writeJSON(w, passages)
	}
	if len(passages) == 0 {
		fmt.Fprintln(w, "No matching passages.")
		return nil
	}
	for i, p := range passages {
		fmt.Fprintf(w, "%d. %s (%.2f)\n", i+1, p.Title, p.Score)
		if p.URL != "" {
			fmt.Fprintf(w, "   %s\n", p.URL)
		}
		fmt.Fprintf(w, "   %s\n", knowledge.Excerpt(p.Content, 160))
	}
	return nil
}
