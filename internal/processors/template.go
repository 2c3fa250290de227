package processors

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/conneroisu/sitewright/internal/files"
)

const (
	TemplateName = "template"
	LayoutName   = "layout"

	// BodyKey is the template data key holding the wrapped content in a
	// layout.
	BodyKey = "body"

	maxPartialDepth = 16
)

// Template executes the file body as a text/template with the file data as
// its dot, then switches to the output extension.
type Template struct {
	env Environment
}

// NewTemplate is the template Factory
func NewTemplate(env Environment) (Processor, error) {
	return &Template{env: env}, nil
}

// Process implements Processor
func (t *Template) Process(ctx context.Context, file *files.PipelineFile) error {
	out, err := render(ctx, t.env, file.WorkingFileName, file.Contents, templateData(file, ""), 0)
	if err != nil {
		return err
	}
	file.Contents = out
	file.SetExtension(outputExtension(file))
	return nil
}

// Layout wraps already rendered content in the file's layout. The layout is
// applied once: afterwards the file's layout is cleared so a later pass
// over the same file does not wrap it again. While an inner extension is
// still mapped (Foo.md.html) nothing happens; the layout is applied when
// the chain comes back to the outer extension. A missing layout that only
// comes from the directory defaults is skipped; one named by the file
// itself is an error.
type Layout struct {
	env Environment
}

// NewLayout is the layout Factory
func NewLayout(env Environment) (Processor, error) {
	return &Layout{env: env}, nil
}

// Process implements Processor
func (l *Layout) Process(ctx context.Context, file *files.PipelineFile) error {
	name := file.Layout()
	if name == "" || l.env.Partials == nil {
		return nil
	}
	if file.DefaultConfiguration.IsMapped(file.PenultimateExtension()) {
		return nil
	}
	_, explicit := file.Data[files.KeyLayout]

	layout, err := l.env.Partials.ResolvePartial(ctx, name, file.FileName)
	if err != nil {
		if !explicit {
			if l.env.Logger != nil {
				l.env.Logger.Debug(ctx, "Default layout not found, leaving content unwrapped",
					"file", file.FileName, "layout", name)
			}
			return nil
		}
		return err
	}

	out, err := render(ctx, l.env, layout.FileName, layout.Contents, templateData(file, file.Contents), 0)
	if err != nil {
		return err
	}
	file.Contents = out
	file.Data[files.KeyLayout] = ""
	return nil
}

func templateData(file *files.PipelineFile, body string) map[string]any {
	data := make(map[string]any, len(file.Data)+1)
	for k, v := range file.Data {
		data[k] = v
	}
	data[BodyKey] = body
	return data
}

// render executes source as a template named after path. The partial func
// renders another cached file with the given data, or the current data.
func render(ctx context.Context, env Environment, path, source string, data map[string]any, depth int) (string, error) {
	if depth > maxPartialDepth {
		return "", fmt.Errorf("partials nested deeper than %d levels at %s", maxPartialDepth, path)
	}

	funcs := template.FuncMap{
		"partial": func(name string, args ...any) (string, error) {
			if env.Partials == nil {
				return "", fmt.Errorf("partial %q: no partials available", name)
			}
			tf, err := env.Partials.ResolvePartial(ctx, name, path)
			if err != nil {
				return "", err
			}
			partialData := data
			if len(args) > 0 {
				if m, ok := args[0].(map[string]any); ok {
					partialData = m
				} else {
					partialData = map[string]any{"value": args[0]}
				}
			}
			return render(ctx, env, tf.FileName, tf.Contents, partialData, depth+1)
		},
		"default": func(fallback, value any) any {
			if value == nil {
				return fallback
			}
			if s, ok := value.(string); ok && s == "" {
				return fallback
			}
			return value
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}

	tmpl, err := template.New(path).Funcs(funcs).Parse(source)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
