package cli

import "github.com/spf13/cobra"

// RootCommand assembles the specforge command tree.
func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "specforge",
		Short:         "Compile declarative entity definitions into per-language code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		CompileCommand(),
		ValidateCommand(),
		PatternsCommand(),
		InitDBCommand(),
		SeedCatalogCommand(),
	)
	return root
}
