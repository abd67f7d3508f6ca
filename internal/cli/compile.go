package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"specforge/internal/compiler"
)

// CompileCommand creates the compile command.
func CompileCommand() *cobra.Command {
	var (
		languages []string
		outDir    string
		discover  bool
		dbConnStr string
	)

	cmd := &cobra.Command{
		Use:   "compile <document>...",
		Short: "Compile entity documents into per-language artifacts",
		Long: `Compile parses each entity document, matches its actions against the
pattern catalog and renders one artifact per (entity, language) pair.

Documents compile independently: a failure in one file is reported and
the rest of the batch still completes.

Examples:
  # Render SQL for every document in a directory
  specforge compile entities/*.yaml --lang postgres

  # Render two targets into an output directory
  specforge compile claim.yaml --lang postgres --lang typescript --out gen/

  # Also record pattern suggestions for unmatched actions
  specforge compile claim.yaml --lang postgres --discover`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args, languages, outDir, discover, dbConnStr)
		},
	}

	cmd.Flags().StringArrayVar(&languages, "lang", []string{"postgres"}, "Target language (repeatable)")
	cmd.Flags().StringVar(&outDir, "out", "", "Directory for rendered artifacts (default: stdout)")
	cmd.Flags().BoolVar(&discover, "discover", false, "Record pattern suggestions for unmatched actions")
	cmd.Flags().StringVar(&dbConnStr, "db", "", "Database connection string (overrides env var)")

	return cmd
}

func runCompile(cmd *cobra.Command, paths, languages []string, outDir string, discover bool, dbConnStr string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, dbConnStr)
	if err != nil {
		return err
	}
	defer rt.close()

	docs, err := readDocuments(paths)
	if err != nil {
		return err
	}

	batch, err := rt.compiler.Compile(ctx, docs, compiler.Options{
		Languages: languages,
		Discover:  discover,
	})
	if err != nil {
		return err
	}

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
		for _, artifact := range doc.Artifacts {
			if artifact.Err != nil {
				failures++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s (%s, %s): %v\n", doc.Source, artifact.Name, artifact.Language, artifact.Err)
				continue
			}
			if err := writeArtifact(cmd, outDir, artifact); err != nil {
				return err
			}
		}
	}

	for _, d := range batch.Discovery {
		if d.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "discovery %s.%s: %v\n", d.Entity, d.Action, d.Err)
			continue
		}
		if d.Inserted {
			fmt.Fprintf(cmd.OutOrStdout(), "suggestion recorded for %s.%s (%s)\n", d.Entity, d.Action, d.Reason)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents had failures", failures, len(docs))
	}
	return nil
}

func readDocuments(paths []string) ([]compiler.Document, error) {
	docs := make([]compiler.Document, 0, len(paths))
	for _, path := range paths {
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, compiler.Document{Name: path, Text: string(text)})
	}
	return docs, nil
}

func writeArtifact(cmd *cobra.Command, outDir string, a compiler.Artifact) error {
	if outDir == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "-- %s (%s)\n%s\n", a.Name, a.Language, a.Text)
		return nil
	}
	dir := filepath.Join(outDir, a.Language)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	name := strings.ToLower(strings.ReplaceAll(a.Name, ".", "_")) + artifactExt(a.Language)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(a.Text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func artifactExt(language string) string {
	switch language {
	case "postgres":
		return ".sql"
	case "python":
		return ".py"
	case "typescript":
		return ".ts"
	default:
		return ".txt"
	}
}
