package skyapi

import (
	"bytes"
	"io"
	"text/tabwriter"

	"github.com/albertocavalcante/skyapi/internal/cli"
	"github.com/albertocavalcante/skyapi/internal/module"
	"github.com/albertocavalcante/skyapi/internal/project"
)

// Report is the outcome of resolving one project directory.
type Report struct {
	Root string `json:"root"`
	// Config is the resolved root config module.
	Config module.Value `json:"config"`
	// Node is the root node module, or nil unless it was finalized.
	Node     *module.Value   `json:"node"`
	Projects []ProjectReport `json:"projects"`
	// Loaded lists helper files the modules loaded.
	Loaded []string `json:"-"`
}

// ProjectReport describes one project context of a run.
type ProjectReport struct {
	Name  string `json:"name"`
	Root  string `json:"root"`
	Kind  string `json:"kind"`
	State string `json:"state"`
	Path  string `json:"path,omitempty"`
}

func newReport(root string, config module.Value, reg *project.Registry, loaded []string) *Report {
	r := &Report{Root: root, Config: config, Projects: []ProjectReport{}, Loaded: loaded}
	if node, ok := reg.Lookup(project.Descriptor{Kind: project.KindNode, Meta: project.Meta{Root: root}}); ok && node.Finalized() {
		v := node.Module()
		r.Node = &v
	}
	for _, p := range reg.Projects() {
		r.Projects = append(r.Projects, ProjectReport{
			Name:  p.Name(),
			Root:  p.Root(),
			Kind:  p.Kind().String(),
			State: p.State().String(),
			Path:  p.ResolvedPath(),
		})
	}
	return r
}

// Files returns the module files the report's projects resolved to and the
// helpers they loaded.
func (r *Report) Files() []string {
	var files []string
	for _, p := range r.Projects {
		if p.Path != "" {
			files = append(files, p.Path)
		}
	}
	return append(files, r.Loaded...)
}

// writeReportsJSON writes a single report as an object and several as an array.
func writeReportsJSON(w io.Writer, reports []*Report) error {
	if len(reports) == 1 {
		return cli.WriteJSON(w, reports[0])
	}
	return cli.WriteJSON(w, reports)
}

func reportsJSON(reports []*Report) (string, error) {
	var buf bytes.Buffer
	if err := writeReportsJSON(&buf, reports); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeReportsText(w io.Writer, reports []*Report) {
	for i, r := range reports {
		if i > 0 {
			cli.Writeln(w)
		}
		cli.Writef(w, "%s\n", r.Root)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		cli.Writeln(tw, "NAME\tKIND\tSTATE\tPATH")
		for _, p := range r.Projects {
			path := p.Path
			if path == "" {
				path = "-"
			}
			cli.Writef(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Kind, p.State, path)
		}
		_ = tw.Flush()
	}
}
