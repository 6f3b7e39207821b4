package skyapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/albertocavalcante/skyapi/internal/apimodule"
	"github.com/albertocavalcante/skyapi/internal/cli"
	"github.com/albertocavalcante/skyapi/internal/locate"
	"github.com/albertocavalcante/skyapi/internal/logging"
	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/plugins"
	"github.com/albertocavalcante/skyapi/internal/project"
	"github.com/albertocavalcante/skyapi/internal/skyconfig"
	"github.com/albertocavalcante/skyapi/internal/transpile"
)

// ErrNoConfigModule is returned for a directory without a sky-config module.
var ErrNoConfigModule = errors.New("no sky-config module found")

type resolveFlags struct {
	json      bool
	noRecurse bool
	watch     bool
	config    string
	logLevel  string
	logFormat string
}

func newResolveCmd() *cobra.Command {
	var flags resolveFlags
	cmd := &cobra.Command{
		Use:   "resolve [dir...]",
		Short: "Resolve the API modules of project directories",
		Long: "Resolve each project directory's sky-config module, its companion and\n" +
			"its plugins. Without arguments the enclosing project of the working\n" +
			"directory is resolved.",
		Example: "  skyapi resolve\n" +
			"  skyapi resolve --json sites/blog sites/docs\n" +
			"  skyapi resolve --watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), flags, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.BoolVar(&flags.json, "json", false, "output JSON even on a terminal")
	f.BoolVar(&flags.noRecurse, "no-recurse", false, "do not resolve declared plugins")
	f.BoolVar(&flags.watch, "watch", false, "re-resolve when a module file changes")
	f.StringVar(&flags.config, "config", "", "config file (default: discovered skyapi.star or skyapi.toml)")
	f.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	return cmd
}

func (f resolveFlags) overrides() *skyconfig.Config {
	cfg := &skyconfig.Config{
		Log: skyconfig.LogConfig{Level: f.logLevel, Format: f.logFormat},
	}
	if f.noRecurse {
		recurse := false
		cfg.Resolve.Recurse = &recurse
	}
	return cfg
}

func runResolve(ctx context.Context, flags resolveFlags, args []string, stdout, stderr io.Writer) error {
	dirs := args
	if len(dirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		dirs = []string{locate.FindProjectRoot(wd, locate.DefaultExtensions)}
	}
	if err := checkDirs(dirs); err != nil {
		return err
	}

	env, err := loadEnvironment(flags.config, dirs[0], flags.overrides(), stderr)
	if err != nil {
		return err
	}

	ctx = logging.WithLogger(ctx, env.logger)
	asJSON := flags.json || flags.watch || !isTerminal(stdout)
	if flags.watch {
		return watch(ctx, env, dirs, stdout, stderr)
	}

	reports, err := resolveAll(ctx, env, dirs)
	if err != nil {
		return err
	}
	if asJSON {
		return writeReportsJSON(stdout, reports)
	}
	writeReportsText(stdout, reports)
	return nil
}

// resolveAll resolves each directory concurrently. Reports keep the order
// of dirs.
func resolveAll(ctx context.Context, env *environment, dirs []string) ([]*Report, error) {
	reports := make([]*Report, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report, err := resolveDir(gctx, env, dir)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// resolveDir resolves one project directory in its own run and registry.
func resolveDir(ctx context.Context, env *environment, dir string) (*Report, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	exts := env.extensions()
	path, ok := locate.Resolve(root, project.KindConfig.SourceRequest(), exts)
	if !ok {
		return nil, fmt.Errorf("%s: %w", root, ErrNoConfigModule)
	}

	logger := logging.FromContext(ctx).With("root", root)
	reg := project.NewRegistry(logger)
	dispatcher := transpile.New(transpile.Options{Timeout: env.cfg.Resolve.Timeout.Duration, Logger: logger})
	resolver := apimodule.New(
		dispatcher,
		plugins.NewProcessor(env.store, exts),
		apimodule.NewRun(),
		apimodule.Options{
			OwnPlugin:        env.ownPlugin(),
			CompanionRequest: env.cfg.Resolve.Companion,
			Extensions:       exts,
		},
	)

	p := reg.Open(project.Descriptor{Kind: project.KindConfig, Meta: project.Meta{Root: root}})
	v, err := resolver.Resolve(module.PathSource(path), p, env.cfg.RecurseEnabled())
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	logger.Info("project resolved", "projects", len(reg.Projects()), "own_plugin", resolver.Run().PluginInserted())
	return newReport(root, v, reg, dispatcher.Loaded()), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// checkDirs rejects arguments that are not directories.
func checkDirs(dirs []string) error {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return cli.Usagef("%s is not a directory", dir)
		}
	}
	return nil
}
