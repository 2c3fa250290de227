package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conneroisu/sitewright/internal/files"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DecodeFunc decodes a block of structured data into a map.
type DecodeFunc func(data []byte) (map[string]any, error)

// DecodeYAML decodes YAML with gopkg.in/yaml.v3
func DecodeYAML(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// DecodeJSON decodes a JSON object
func DecodeJSON(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	if strings.TrimSpace(string(data)) == "" {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// DecodeTOML decodes TOML with pelletier/go-toml
func DecodeTOML(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	if err := toml.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// FrontMatter reads a block delimited by a marker line at the very start of
// the contents, merges it into Data and removes it from the contents.
type FrontMatter struct {
	Delimiter string
	Decode    DecodeFunc
}

// YAMLFrontMatter handles blocks fenced by "---"
func YAMLFrontMatter() *FrontMatter {
	return &FrontMatter{Delimiter: "---", Decode: DecodeYAML}
}

// JSONFrontMatter handles blocks fenced by "###"
func JSONFrontMatter() *FrontMatter {
	return &FrontMatter{Delimiter: "###", Decode: DecodeJSON}
}

// TOMLFrontMatter handles blocks fenced by "==="
func TOMLFrontMatter() *FrontMatter {
	return &FrontMatter{Delimiter: "===", Decode: DecodeTOML}
}

// Inject implements Injector
func (fm *FrontMatter) Inject(_ context.Context, file *files.PipelineFile) error {
	block, body, found, err := splitFrontMatter(file.Contents, fm.Delimiter)
	if err != nil || !found {
		return err
	}

	values, err := fm.Decode([]byte(block))
	if err != nil {
		return fmt.Errorf("front matter %q: %w", fm.Delimiter, err)
	}

	file.Merge(values)
	file.Contents = body
	return nil
}

// splitFrontMatter separates a leading delimited block from the body. found
// is false when contents does not open with the delimiter line.
func splitFrontMatter(contents, delimiter string) (block, body string, found bool, err error) {
	text := strings.TrimPrefix(contents, "\ufeff")

	firstLine, rest, hasNewline := strings.Cut(text, "\n")
	if strings.TrimRight(firstLine, " \t\r") != delimiter || !hasNewline {
		return "", contents, false, nil
	}

	offset := 0
	for offset <= len(rest) {
		line, after, more := strings.Cut(rest[offset:], "\n")
		if strings.TrimRight(line, " \t\r") == delimiter {
			block = rest[:offset]
			if more {
				body = after
			}
			return block, body, true, nil
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}

	return "", contents, false, fmt.Errorf("front matter opened with %q is never closed", delimiter)
}
