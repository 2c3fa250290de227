//go:build property
// +build property

package dirconfig

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genExtensionConfiguration() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(2, gen.OneConstOf("markdown", "template", "layout")),
		gen.IntRange(0, 2),
		gen.OneConstOf("", "_Layout.hbs", "_Blog.hbs"),
		gen.OneConstOf("", "site", "api"),
		gen.OneConstOf("", "html", "xml"),
		gen.Bool(),
	).Map(func(values []interface{}) ExtensionConfiguration {
		cfg := ExtensionConfiguration{
			DefaultLayout:    values[2].(string),
			DefaultModelName: values[3].(string),
			DefaultExtOut:    values[4].(string),
		}
		if values[5].(bool) {
			cfg.Processors = values[0].([]string)
		}
		switch values[1].(int) {
		case 1:
			cfg.DefaultPublish = boolPtr(true)
		case 2:
			cfg.DefaultPublish = boolPtr(false)
		}
		return cfg
	})
}

// TestMergeProperties checks the merge law over generated mappings
func TestMergeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parent-only extensions are inherited unchanged", prop.ForAll(
		func(p ExtensionConfiguration) bool {
			parent := &DirectoryConfiguration{ExtensionMappings: map[string]ExtensionConfiguration{"x": p}}
			child := &DirectoryConfiguration{ExtensionMappings: map[string]ExtensionConfiguration{}}
			return reflect.DeepEqual(Merge(parent, child).ExtensionMappings["x"], p)
		},
		genExtensionConfiguration(),
	))

	properties.Property("set child fields win and unset ones are backfilled", prop.ForAll(
		func(p, c ExtensionConfiguration) bool {
			parent := &DirectoryConfiguration{ExtensionMappings: map[string]ExtensionConfiguration{"x": p}}
			child := &DirectoryConfiguration{ExtensionMappings: map[string]ExtensionConfiguration{"x": c}}
			m := Merge(parent, child).ExtensionMappings["x"]

			pick := func(childValue, parentValue string) string {
				if childValue != "" {
					return childValue
				}
				return parentValue
			}

			wantProcessors := c.Processors
			if len(wantProcessors) == 0 {
				wantProcessors = p.Processors
			}
			if !reflect.DeepEqual(append([]string(nil), m.Processors...), append([]string(nil), wantProcessors...)) {
				return false
			}

			wantPublish := c.DefaultPublish
			if wantPublish == nil {
				wantPublish = p.DefaultPublish
			}
			if (wantPublish == nil) != (m.DefaultPublish == nil) {
				return false
			}
			if wantPublish != nil && *wantPublish != *m.DefaultPublish {
				return false
			}

			return m.DefaultLayout == pick(c.DefaultLayout, p.DefaultLayout) &&
				m.DefaultModelName == pick(c.DefaultModelName, p.DefaultModelName) &&
				m.DefaultExtOut == pick(c.DefaultExtOut, p.DefaultExtOut)
		},
		genExtensionConfiguration(),
		genExtensionConfiguration(),
	))

	properties.TestingRun(t)
}
