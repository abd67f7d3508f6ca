package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidateCommand creates the validate command.
func ValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Parse documents and check every embedded expression",
		Long: `Validate parses each entity document and compiles every expression it
embeds (validation rules, conditions, assignments, field defaults)
without rendering anything or touching the pattern catalog.

Reference cycles between the given documents are reported as notes;
they are valid topology.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, paths []string) error {
	rt, err := newRuntime(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer rt.close()

	docs, err := readDocuments(paths)
	if err != nil {
		return err
	}

	batch := rt.compiler.Validate(cmd.Context(), docs)

	for _, cycle := range batch.Cycles {
		fmt.Fprintf(cmd.OutOrStdout(), "note: %s\n", cycle.Message)
	}

	failures := 0
	for _, doc := range batch.Documents {
		if doc.Err != nil {
			failures++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", doc.Source, doc.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d fields, %d actions)\n",
			doc.Source, doc.Entity.Name, len(doc.Entity.FieldOrder), len(doc.Entity.Actions))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed validation", failures, len(docs))
	}
	return nil
}
