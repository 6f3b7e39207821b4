package skyapi

import (
	"io"
	"log/slog"

	"github.com/albertocavalcante/skyapi/internal/cli"
	"github.com/albertocavalcante/skyapi/internal/locate"
	"github.com/albertocavalcante/skyapi/internal/logging"
	"github.com/albertocavalcante/skyapi/internal/plugins"
	"github.com/albertocavalcante/skyapi/internal/skyconfig"
)

// environment is the settings, store and logger shared by one invocation.
type environment struct {
	cfg        *skyconfig.Config
	configPath string
	store      *plugins.Store
	logger     *slog.Logger
}

// loadEnvironment loads configPath, or discovers a config file from
// startDir, and applies the command line overrides on top.
func loadEnvironment(configPath, startDir string, overrides *skyconfig.Config, stderr io.Writer) (*environment, error) {
	var (
		cfg *skyconfig.Config
		err error
	)
	if configPath != "" {
		var loaded *skyconfig.Config
		loaded, err = skyconfig.LoadConfig(configPath)
		if err == nil {
			cfg = skyconfig.DefaultConfig()
			cfg.Merge(loaded)
		}
	} else {
		cfg, configPath, err = skyconfig.DiscoverConfig(startDir)
	}
	if err != nil {
		return nil, err
	}
	cfg.Merge(overrides)

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return nil, cli.Usagef("%v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded", "config", configPath, "store", store.Root)
	return &environment{cfg: cfg, configPath: configPath, store: store, logger: logger}, nil
}

func openStore(cfg *skyconfig.Config) (*plugins.Store, error) {
	if cfg.Plugins.Store != "" {
		return plugins.NewStore(cfg.Plugins.Store), nil
	}
	return plugins.DefaultStore()
}

// extensions returns the module extensions in lookup order.
func (e *environment) extensions() []string {
	if len(e.cfg.Resolve.Extensions) > 0 {
		return e.cfg.Resolve.Extensions
	}
	return locate.DefaultExtensions
}

// ownPlugin returns the location of skyapi's own plugin.
func (e *environment) ownPlugin() string {
	if e.cfg.Resolve.OwnPlugin != "" {
		return e.cfg.Resolve.OwnPlugin
	}
	return e.store.PluginPath(plugins.OwnPluginName)
}
