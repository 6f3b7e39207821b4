package skyapi

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/albertocavalcante/skyapi/internal/cli"
	"github.com/albertocavalcante/skyapi/internal/logging"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// watch resolves dirs, prints the JSON output, and re-resolves whenever a
// resolved module file changes, printing a unified diff of the output.
// It returns when ctx is done.
func watch(ctx context.Context, env *environment, dirs []string, stdout, stderr io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	files := newWatchSet(w)
	if env.configPath != "" {
		files.add(env.configPath)
	}

	prev, reports, err := resolveJSON(ctx, env, dirs)
	if err != nil {
		return err
	}
	files.addReports(reports)
	cli.Write(stdout, prev)

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 || !files.has(event.Name) {
				continue
			}
			logging.FromContext(ctx).Debug("module changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			trigger = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cli.Writef(stderr, "skyapi: watch: %v\n", err)

		case <-trigger:
			trigger = nil
			next, reports, err := resolveJSON(ctx, env, dirs)
			if err != nil {
				cli.Writef(stderr, "skyapi: %v\n", err)
				continue
			}
			files.addReports(reports)
			if d := diffOutput(prev, next); d != "" {
				cli.Write(stdout, d)
			}
			prev = next
		}
	}
}

func resolveJSON(ctx context.Context, env *environment, dirs []string) (string, []*Report, error) {
	reports, err := resolveAll(ctx, env, dirs)
	if err != nil {
		return "", nil, err
	}
	out, err := reportsJSON(reports)
	return out, reports, err
}

// diffOutput returns a unified diff between two outputs, or "" if they match.
func diffOutput(prev, next string) string {
	if prev == next {
		return ""
	}
	text, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(prev),
		B:        difflib.SplitLines(next),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	})
	return text
}

// watchSet tracks module files. Their directories are watched so that
// files replaced by editors keep being noticed.
type watchSet struct {
	w     *fsnotify.Watcher
	files map[string]bool
	dirs  map[string]bool
}

func newWatchSet(w *fsnotify.Watcher) *watchSet {
	return &watchSet{w: w, files: make(map[string]bool), dirs: make(map[string]bool)}
}

func (s *watchSet) add(file string) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return
	}
	s.files[abs] = true
	dir := filepath.Dir(abs)
	if s.dirs[dir] {
		return
	}
	if err := s.w.Add(dir); err == nil {
		s.dirs[dir] = true
	}
}

func (s *watchSet) addReports(reports []*Report) {
	for _, r := range reports {
		for _, f := range r.Files() {
			s.add(f)
		}
	}
}

func (s *watchSet) has(name string) bool {
	abs, err := filepath.Abs(name)
	return err == nil && s.files[abs]
}
