// Package skyapi implements the skyapi command.
package skyapi

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/skyapi/internal/cli"
	"github.com/albertocavalcante/skyapi/internal/version"
)

// Run executes skyapi with the given arguments.
// Returns exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return RunWithIO(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return cli.Execute(ctx, newRootCmd(), args, stdin, stdout, stderr)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "skyapi",
		Short: "Resolve the API modules of sky projects",
		Long: "skyapi resolves a project's sky-config module, its sky-node companion\n" +
			"and the plugins it declares, and prints the resulting configuration.",
		Version: version.String(),
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.AddCommand(newResolveCmd())
	root.AddCommand(newPluginCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cli.Args(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			cli.Writef(cmd.OutOrStdout(), "skyapi %s\n", version.String())
		},
	}
}
