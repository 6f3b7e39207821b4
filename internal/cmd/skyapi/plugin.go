package skyapi

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/skyapi/internal/cli"
	"github.com/albertocavalcante/skyapi/internal/plugins"
	"github.com/albertocavalcante/skyapi/internal/skyconfig"
)

func newPluginCmd() *cobra.Command {
	var storeDir string
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage installed plugins",
		Long: "Installed plugins are directories with their own sky-config and sky-node\n" +
			"modules. Config modules refer to them by name in their plugin list.",
	}
	cmd.PersistentFlags().StringVar(&storeDir, "store", "", "plugin store directory (default: from config, then "+plugins.EnvConfigDir+")")

	openStore := func() (*plugins.Store, error) {
		if storeDir != "" {
			return plugins.NewStore(storeDir), nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		cfg, _, err := skyconfig.DiscoverConfig(wd)
		if err != nil {
			return nil, err
		}
		return openStore(cfg)
	}

	cmd.AddCommand(newPluginAddCmd(openStore))
	cmd.AddCommand(newPluginListCmd(openStore))
	cmd.AddCommand(newPluginRemoveCmd(openStore))
	return cmd
}

func newPluginAddCmd(openStore func() (*plugins.Store, error)) *cobra.Command {
	var path, version string
	cmd := &cobra.Command{
		Use:   "add <name> --path PATH",
		Short: "Install a plugin from a local directory",
		Args:  cli.Args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return cli.Usagef("--path is required")
			}
			if err := plugins.ValidateName(args[0]); err != nil {
				return cli.Usagef("%v", err)
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			plugin, err := store.InstallFromPath(args[0], path, version)
			if err != nil {
				return err
			}
			cli.Writef(cmd.OutOrStdout(), "installed %s -> %s\n", plugin.Name, plugin.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "plugin directory to install")
	cmd.Flags().StringVar(&version, "version", "", "version to record")
	return cmd
}

func newPluginListCmd(openStore func() (*plugins.Store, error)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cli.Args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			installed, err := store.LoadPlugins()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return cli.WriteJSON(out, installed)
			}
			if len(installed) == 0 {
				cli.Writeln(out, "no plugins installed")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			cli.Writeln(tw, "NAME\tVERSION\tPATH")
			for _, p := range installed {
				v := p.Version
				if v == "" {
					v = "-"
				}
				cli.Writef(tw, "%s\t%s\t%s\n", p.Name, v, p.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newPluginRemoveCmd(openStore func() (*plugins.Store, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an installed plugin",
		Args:  cli.Args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			removed, err := store.RemovePlugin(args[0])
			if err != nil {
				return err
			}
			cli.Writef(cmd.OutOrStdout(), "removed %s\n", removed.Name)
			return nil
		},
	}
}
