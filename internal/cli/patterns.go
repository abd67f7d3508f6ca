package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"specforge/internal/pattern"
	"specforge/internal/store"
)

// PatternsCommand creates the patterns command group: the catalog listing
// plus the suggestion review surface.
func PatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect the pattern catalog and review discovered suggestions",
	}
	cmd.AddCommand(
		patternsListCommand(),
		patternsShowCommand(),
		patternsApproveCommand(),
		patternsRejectCommand(),
	)
	return cmd
}

func patternsListCommand() *cobra.Command {
	var (
		category  string
		pending   bool
		limit     int
		dbConnStr string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog patterns or pending suggestions",
		Long: `List prints the pattern catalog, or with --pending the suggestions
awaiting review, oldest first.

Examples:
  specforge patterns list
  specforge patterns list --category workflow
  specforge patterns list --pending --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), dbConnStr)
			if err != nil {
				return err
			}
			defer rt.close()

			if pending {
				return listPending(cmd, rt, limit)
			}
			return listPatterns(cmd, rt, category)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter patterns by category")
	cmd.Flags().BoolVar(&pending, "pending", false, "List pending suggestions instead of catalog patterns")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of suggestions to list")
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")
	return cmd
}

func listPatterns(cmd *cobra.Command, rt *runtime, category string) error {
	patterns, err := rt.store.ListPatterns(cmd.Context(), category)
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no patterns in the catalog")
		return nil
	}
	for _, p := range patterns {
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-12s complexity=%-3d %s\n", p.Name, p.Category, p.Complexity, p.Signature)
	}
	return nil
}

func listPending(cmd *cobra.Command, rt *runtime, limit int) error {
	suggestions, err := rt.store.ListPending(cmd.Context(), limit)
	if err != nil {
		return err
	}
	counts, err := rt.store.CountsByStatus(cmd.Context())
	if err != nil {
		return err
	}

	for _, s := range suggestions {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s %s.%s (%s)\n", s.ID, s.Name, s.SourceEntity, s.SourceAction, s.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pending=%d approved=%d rejected=%d\n",
		counts[pattern.StatusPending], counts[pattern.StatusApproved], counts[pattern.StatusRejected])
	return nil
}

func patternsShowCommand() *cobra.Command {
	var dbConnStr string

	cmd := &cobra.Command{
		Use:   "show <suggestion-id>",
		Short: "Show one suggestion in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), dbConnStr)
			if err != nil {
				return err
			}
			defer rt.close()

			s, err := rt.store.GetSuggestion(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:         %s\n", s.ID)
			fmt.Fprintf(out, "name:       %s\n", s.Name)
			fmt.Fprintf(out, "status:     %s\n", s.Status)
			fmt.Fprintf(out, "source:     %s.%s\n", s.SourceEntity, s.SourceAction)
			fmt.Fprintf(out, "signature:  %s\n", s.Signature)
			fmt.Fprintf(out, "complexity: %d (%d steps)\n", s.Complexity, s.StepCount)
			fmt.Fprintf(out, "best score: %.2f\n", s.BestScore)
			if s.Reason != "" {
				fmt.Fprintf(out, "reason:     %s\n", s.Reason)
			}
			fmt.Fprintf(out, "language:   %s\n", s.Language)
			fmt.Fprintf(out, "template:\n%s\n", s.Template)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")
	return cmd
}

func patternsApproveCommand() *cobra.Command {
	var dbConnStr string

	cmd := &cobra.Command{
		Use:   "approve <suggestion-id>",
		Short: "Approve a pending suggestion, promoting it into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), dbConnStr)
			if err != nil {
				return err
			}
			defer rt.close()

			p, err := rt.store.Approve(cmd.Context(), args[0])
			if err != nil {
				return reviewError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved: pattern %q is now in the catalog\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")
	return cmd
}

func patternsRejectCommand() *cobra.Command {
	var (
		reason    string
		dbConnStr string
	)

	cmd := &cobra.Command{
		Use:   "reject <suggestion-id>",
		Short: "Reject a pending suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			rt, err := newRuntime(cmd.Context(), dbConnStr)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.store.Reject(cmd.Context(), args[0], reason); err != nil {
				return reviewError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rejected")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the suggestion is rejected (required)")
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")
	return cmd
}

// reviewError rewords the storage errors a reviewer actually hits.
func reviewError(err error) error {
	var stale *pattern.StaleSuggestionError
	if errors.As(err, &stale) {
		return fmt.Errorf("suggestion %s was already decided (%s); transitions are terminal", stale.ID, stale.Status)
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no such suggestion: %w", err)
	}
	return err
}
