// Package cmdtest provides a testscript-based test harness for the skyapi
// command.
//
// Test files use the txtar format to hold the project tree a script runs
// against:
//
//	# A project with one local plugin
//	exec skyapi resolve --json .
//	stdout '"resolve": ".*/plugins/seo"'
//
//	-- sky-config.star --
//	plugins = ["seo"]
//	-- plugins/seo/sky-config.yaml --
//	title: SEO
package cmdtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/skyapi/internal/cmd/skyapi"
	"github.com/albertocavalcante/skyapi/internal/plugins"
	"github.com/albertocavalcante/skyapi/internal/skyconfig"
)

// Run executes the testscript tests in the given directory. Each script
// gets its own plugin store under $WORK/store.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			env.Setenv(plugins.EnvConfigDir, filepath.Join(env.WorkDir, "store"))
			env.Setenv(skyconfig.EnvConfig, "")
			return nil
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It sets up skyapi as a testscript command.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"skyapi": func() int { return skyapi.Run(os.Args[1:]) },
	}))
}
