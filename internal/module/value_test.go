package module

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromNative(t *testing.T) {
	fn := GoFunc{FuncName: "configure"}
	tests := []struct {
		name string
		in   any
		want Form
	}{
		{name: "nil", in: nil, want: FormAbsent},
		{name: "map", in: map[string]any{"a": 1}, want: FormObject},
		{name: "func", in: fn, want: FormFunc},
		{name: "string", in: "hello", want: FormOther},
		{name: "list", in: []any{1, 2}, want: FormOther},
		{name: "nil object", in: (*Object)(nil), want: FormAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromNative(tt.in).Form(); got != tt.want {
				t.Errorf("FromNative(%v).Form() = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	in := map[string]any{
		"tables": []map[string]any{{"a": 1}, {"b": map[any]any{1: "x"}}},
		"list":   []any{map[any]any{"k": "v"}},
	}
	want := map[string]any{
		"tables": []any{map[string]any{"a": 1}, map[string]any{"b": map[string]any{"1": "x"}}},
		"list":   []any{map[string]any{"k": "v"}},
	}
	if diff := cmp.Diff(want, Normalize(in)); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectPlugins(t *testing.T) {
	obj := NewObject(nil)
	if _, ok := obj.Plugins(); ok {
		t.Fatal("new object should not have plugins")
	}

	obj.AppendPlugin("a")
	obj.AppendPlugin("b")
	list, ok := obj.Plugins()
	if !ok {
		t.Fatal("expected plugins after append")
	}
	if diff := cmp.Diff([]any{"a", "b"}, list); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}

	obj.SetPlugins([]any{"c"})
	list, _ = obj.Plugins()
	if diff := cmp.Diff([]any{"c"}, list); diff != "" {
		t.Errorf("plugins after SetPlugins mismatch (-want +got):\n%s", diff)
	}

	bad := NewObject(map[string]any{PluginsField: "oops"})
	if bad.AppendPlugin("a") {
		t.Error("AppendPlugin on a non-list field should report false")
	}
	if got, _ := bad.Plugins(); got != "oops" {
		t.Errorf("non-list plugins field = %v, want it left alone", got)
	}
}

func TestExportFromFields(t *testing.T) {
	named := FromFields(map[string]any{"title": "site"})
	if named.Kind != ExportNamed {
		t.Errorf("Kind = %v, want ExportNamed", named.Kind)
	}
	obj, ok := named.Unwrap().Object()
	if !ok {
		t.Fatal("named export should unwrap to an object")
	}
	if v, _ := obj.Get("title"); v != "site" {
		t.Errorf("title = %v, want site", v)
	}

	def := FromFields(map[string]any{"default": map[string]any{"plugins": []any{"a"}}, "other": 1})
	if def.Kind != ExportDefault {
		t.Errorf("Kind = %v, want ExportDefault", def.Kind)
	}
	obj, ok = def.Unwrap().Object()
	if !ok {
		t.Fatal("default export should unwrap to an object")
	}
	if _, ok := obj.Get("other"); ok {
		t.Error("default export should not carry sibling fields")
	}
}

func TestValueMarshalJSON(t *testing.T) {
	fn := GoFunc{FuncName: "on_build"}
	v := ObjectValue(NewObject(map[string]any{
		"name":     "site",
		"on_build": fn,
		"nested":   []any{fn},
	}))

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{
		"name":     "site",
		"on_build": "<function on_build>",
		"nested":   []any{"<function on_build>"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}

	data, err = FuncValue(fn).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON func: %v", err)
	}
	if string(data) != `"<function on_build>"` {
		t.Errorf("func JSON = %s", data)
	}

	data, err = v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON object: %v", err)
	}
	if !strings.Contains(string(data), `"on_build":"<function on_build>"`) {
		t.Errorf("object JSON = %s, want unescaped function description", data)
	}
}

func TestSourceString(t *testing.T) {
	if got := PathSource("/p/sky-config.star").String(); got != "/p/sky-config.star" {
		t.Errorf("String() = %q", got)
	}
	if got := LoadedSource(Absent()).String(); got != "<loaded absent>" {
		t.Errorf("String() = %q", got)
	}
}
