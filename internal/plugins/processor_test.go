package plugins

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/project"
)

type resolveCall struct {
	Path    string
	Kind    project.Kind
	Name    string
	Options map[string]any
}

type recorder struct {
	calls []resolveCall
	err   error
}

func (r *recorder) resolve(src module.Source, p *project.Project, recurse bool) (module.Value, error) {
	r.calls = append(r.calls, resolveCall{
		Path:    src.Path(),
		Kind:    p.Kind(),
		Name:    p.Name(),
		Options: p.PluginOptions(),
	})
	if r.err != nil {
		return module.Value{}, r.err
	}
	return module.ObjectValue(module.NewObject(nil)), nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newOwner(t *testing.T, root string) *project.Project {
	t.Helper()
	return project.NewRegistry(nil).Open(project.Descriptor{
		Kind: project.KindConfig,
		Meta: project.Meta{Name: "site", Root: root},
	})
}

func TestProcessOrderAndResolution(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "plugins", "named", "sky-config.star"))
	touch(t, filepath.Join(root, "local", "sky-node.toml"))

	rec := &recorder{}
	list := []any{
		"remote-a",
		map[string]any{"resolve": "named", "options": map[string]any{"level": 1}},
		map[string]any{"resolve": "./local"},
		Declaration{Resolve: "remote-b", Options: map[string]any{"x": true}},
	}

	got, err := NewProcessor(nil, nil).Process(newOwner(t, root), rec.resolve, list)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []Declaration{
		{Resolve: "remote-a", Options: map[string]any{}},
		{Resolve: filepath.Join(root, "plugins", "named"), Options: map[string]any{"level": 1}},
		{Resolve: filepath.Join(root, "local"), Options: map[string]any{}},
		{Resolve: "remote-b", Options: map[string]any{"x": true}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}

	wantCalls := []resolveCall{
		{
			Path:    filepath.Join(root, "plugins", "named", "sky-config.star"),
			Kind:    project.KindConfig,
			Name:    "named",
			Options: map[string]any{"level": 1},
		},
		{
			Path:    filepath.Join(root, "local", "sky-node.toml"),
			Kind:    project.KindNode,
			Name:    "local",
			Options: map[string]any{},
		},
	}
	if diff := cmp.Diff(wantCalls, rec.calls); diff != "" {
		t.Errorf("resolve calls mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessAbsentList(t *testing.T) {
	got, err := NewProcessor(nil, nil).Process(newOwner(t, t.TempDir()), (&recorder{}).resolve, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Process(nil) = %#v, want empty list", got)
	}
}

func TestProcessDeduplicates(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "plugins", "seo", "sky-config.star"))

	rec := &recorder{}
	proc := NewProcessor(nil, nil)
	list := []any{
		map[string]any{"resolve": "seo", "options": map[string]any{"n": 1}},
		map[string]any{"resolve": "seo", "options": map[string]any{"n": 2}},
	}
	got, err := proc.Process(newOwner(t, root), rec.resolve, list)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("resolve called %d times, want 1", len(rec.calls))
	}
	if got[0].Options["n"] != 1 || got[1].Options["n"] != 2 {
		t.Errorf("declarations lost their own options: %+v", got)
	}
}

func TestProcessInstalled(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "store"))
	src := filepath.Join(root, "src", "seo")
	writePluginDir(t, src)
	if _, err := store.InstallFromPath("seo", src, "1.0.0"); err != nil {
		t.Fatalf("install: %v", err)
	}

	rec := &recorder{}
	got, err := NewProcessor(store, nil).Process(newOwner(t, filepath.Join(root, "site")), rec.resolve, []any{"seo", "not-installed"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []Declaration{
		{Resolve: store.PluginPath("seo"), Options: map[string]any{}},
		{Resolve: "not-installed", Options: map[string]any{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	if len(rec.calls) != 1 || rec.calls[0].Path != filepath.Join(store.PluginPath("seo"), "sky-config.star") {
		t.Errorf("resolve calls = %+v", rec.calls)
	}
}

func TestProcessMalformed(t *testing.T) {
	tests := []struct {
		name string
		list any
	}{
		{name: "not a list", list: "seo"},
		{name: "number entry", list: []any{42}},
		{name: "missing resolve", list: []any{map[string]any{"options": map[string]any{}}}},
		{name: "empty name", list: []any{""}},
		{name: "bad options", list: []any{map[string]any{"resolve": "a", "options": []any{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProcessor(nil, nil).Process(newOwner(t, t.TempDir()), (&recorder{}).resolve, tt.list)
			if !errors.Is(err, ErrMalformedDeclaration) {
				t.Errorf("error = %v, want ErrMalformedDeclaration", err)
			}
		})
	}
}

func TestProcessPropagatesResolveError(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "plugins", "broken", "sky-config.star"))

	boom := errors.New("boom")
	rec := &recorder{err: boom}
	_, err := NewProcessor(nil, nil).Process(newOwner(t, root), rec.resolve, []any{"broken"})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestDeclarationMap(t *testing.T) {
	got := Maps([]Declaration{{Resolve: "a"}, {Resolve: "b", Options: map[string]any{"k": "v"}}})
	want := []any{
		map[string]any{"resolve": "a", "options": map[string]any{}},
		map[string]any{"resolve": "b", "options": map[string]any{"k": "v"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Maps() mismatch (-want +got):\n%s", diff)
	}
}
