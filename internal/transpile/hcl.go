package transpile

import (
	"fmt"
	"runtime"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/albertocavalcante/skyapi/internal/module"
)

// pluginBlock declares one plugin: plugin "name" { option = value }.
const pluginBlock = "plugin"

// HCL evaluates .hcl modules. Attributes are exported like TOML keys.
// Each plugin block appends {resolve: label, options: attributes} to the
// plugins list, after any plugins attribute entries.
type HCL struct{}

// Transpile implements Backend.
func (HCL) Transpile(path string, data []byte, _ Host) (module.Export, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, path)
	if diags.HasErrors() {
		return module.Export{}, fmt.Errorf("parsing HCL module %s: %w", path, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return module.Export{}, fmt.Errorf("parsing HCL module %s: unexpected body type %T", path, file.Body)
	}

	ctx := hclEvalContext()
	fields, err := hclAttributes(body, ctx)
	if err != nil {
		return module.Export{}, fmt.Errorf("%s: %w", path, err)
	}

	for _, block := range body.Blocks {
		if block.Type != pluginBlock || len(block.Labels) != 1 {
			return module.Export{}, fmt.Errorf("%s:%d: unsupported block %q; only plugin \"name\" blocks are allowed",
				path, block.DefRange().Start.Line, block.Type)
		}
		if len(block.Body.Blocks) > 0 {
			return module.Export{}, fmt.Errorf("%s:%d: plugin %q: nested blocks are not allowed",
				path, block.DefRange().Start.Line, block.Labels[0])
		}
		opts, err := hclAttributes(block.Body, ctx)
		if err != nil {
			return module.Export{}, fmt.Errorf("%s: plugin %q: %w", path, block.Labels[0], err)
		}

		var list []any
		if existing, ok := fields[module.PluginsField]; ok {
			if list, ok = existing.([]any); !ok {
				return module.Export{}, fmt.Errorf("%s: plugins attribute must be a list to combine with plugin blocks", path)
			}
		}
		fields[module.PluginsField] = append(list, map[string]any{
			"resolve": block.Labels[0],
			"options": opts,
		})
	}
	return module.FromFields(fields), nil
}

func hclAttributes(body *hclsyntax.Body, ctx *hcl.EvalContext) (map[string]any, error) {
	out := make(map[string]any, len(body.Attributes))
	for name, attr := range body.Attributes {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return nil, diags
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in attribute '%s': %w", name, err)
		}
		out[name] = native
	}
	return out, nil
}

// hclEvalContext exposes host facts and a few string and collection
// functions to HCL expressions.
func hclEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"host_os":   cty.StringVal(runtime.GOOS),
			"host_arch": cty.StringVal(runtime.GOARCH),
		},
		Functions: map[string]function.Function{
			"upper":  stdlib.UpperFunc,
			"lower":  stdlib.LowerFunc,
			"concat": stdlib.ConcatFunc,
			"merge":  stdlib.MergeFunc,
			"format": stdlib.FormatFunc,
		},
	}
}

// ctyToNative recursively converts a cty.Value to its most natural Go
// counterpart. Whole numbers become int64, other numbers float64.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == 0 {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, nativeVal)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			keyStr := key.AsString()
			nativeVal, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = nativeVal
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported cty type for conversion: %s", ty.FriendlyName())
	}
}
