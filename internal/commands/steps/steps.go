// Package steps parses the build step names accepted by --build and the
// build.steps setting.
package steps

import (
	"fmt"
	"strings"
)

// Kind identifies one build step
type Kind int

const (
	Npm Kind = iota
	NpmScript
	Node
	Content
	Scripts
	Images
	Views
)

// Step is a parsed build step. Arg holds the script name for npm:<script>
// and the file for node:<file>.
type Step struct {
	Kind Kind
	Arg  string
}

// String returns the normalized step name
func (s Step) String() string {
	switch s.Kind {
	case Npm:
		return "npm"
	case NpmScript:
		return "npm:" + s.Arg
	case Node:
		return "node:" + s.Arg
	case Content:
		return "content"
	case Scripts:
		return "scripts"
	case Images:
		return "images"
	case Views:
		return "views"
	default:
		return "unknown"
	}
}

// All is the step list used when --build is given without a value.
var All = []string{"content", "scripts", "images", "views"}

// Parse parses a single step. The step name is case-insensitive; the
// argument of npm:<script> and node:<file> keeps its case.
func Parse(raw string) (Step, error) {
	raw = strings.TrimSpace(raw)
	name, arg, hasArg := strings.Cut(raw, ":")
	name = strings.ToLower(strings.TrimSpace(name))
	arg = strings.TrimSpace(arg)

	if hasArg {
		if arg == "" {
			return Step{}, fmt.Errorf("build step %q is missing its argument", raw)
		}
		switch name {
		case "npm":
			return Step{Kind: NpmScript, Arg: arg}, nil
		case "node":
			return Step{Kind: Node, Arg: arg}, nil
		default:
			return Step{}, fmt.Errorf("build step %q does not take an argument", name)
		}
	}

	switch name {
	case "npm":
		return Step{Kind: Npm}, nil
	case "content":
		return Step{Kind: Content}, nil
	case "scripts":
		return Step{Kind: Scripts}, nil
	case "images":
		return Step{Kind: Images}, nil
	case "views":
		return Step{Kind: Views}, nil
	case "":
		return Step{}, fmt.Errorf("empty build step")
	default:
		return Step{}, fmt.Errorf("unknown build step %q", raw)
	}
}

// Normalize parses raw step names, splitting comma separated entries, and
// drops repeats while keeping first-seen order.
func Normalize(raw []string) ([]Step, error) {
	var result []Step
	seen := make(map[Step]bool)

	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			step, err := Parse(part)
			if err != nil {
				return nil, err
			}
			if seen[step] {
				continue
			}
			seen[step] = true
			result = append(result, step)
		}
	}

	return result, nil
}
