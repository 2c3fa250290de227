// Package commands turns CLI requests and file change notifications into an
// ordered list of build commands for the host to run.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Command is one build action. The set of commands is closed; the host
// dispatches on the concrete type.
type Command interface {
	// Kind is the command name used in logs and metrics
	Kind() string
	command()
}

// Help prints usage, optionally explaining why the request was rejected.
type Help struct {
	Reason string
}

// Clean empties the website directory.
type Clean struct{}

// CreateDirectory makes sure a directory exists.
type CreateDirectory struct {
	Path string
}

// DeleteFile removes the website copy of a source file.
type DeleteFile struct {
	Path string
}

// CopyFile copies a source file to its website destination.
type CopyFile struct {
	Path string
}

// RunProcess runs an allowlisted external program in the project directory.
type RunProcess struct {
	Name string
	Args []string
}

// BuildAssets copies the content and/or scripts directories.
type BuildAssets struct {
	Content bool
	Scripts bool
}

// BuildImages copies the images directory.
type BuildImages struct{}

// BuildView runs the view pipeline for one file.
type BuildView struct {
	Path string
}

// BuildViews runs the view pipeline for a directory.
type BuildViews struct {
	Directory string
}

// FlushPartials drops the partial cache so the next build reloads it.
type FlushPartials struct{}

// UnknownFile reports a change the host has no handler for.
type UnknownFile struct {
	Path string
}

// Serve starts the development server.
type Serve struct {
	Port int
}

// Watch starts the directory watcher.
type Watch struct{}

func (Help) Kind() string            { return "Help" }
func (Clean) Kind() string           { return "Clean" }
func (CreateDirectory) Kind() string { return "CreateDirectory" }
func (DeleteFile) Kind() string      { return "DeleteFile" }
func (CopyFile) Kind() string        { return "CopyFile" }
func (RunProcess) Kind() string      { return "RunProcess" }
func (BuildAssets) Kind() string     { return "BuildAssets" }
func (BuildImages) Kind() string     { return "BuildImages" }
func (BuildView) Kind() string       { return "BuildView" }
func (BuildViews) Kind() string      { return "BuildViews" }
func (FlushPartials) Kind() string   { return "FlushPartials" }
func (UnknownFile) Kind() string     { return "UnknownFile" }
func (Serve) Kind() string           { return "Serve" }
func (Watch) Kind() string           { return "Watch" }

func (Help) command()            {}
func (Clean) command()           {}
func (CreateDirectory) command() {}
func (DeleteFile) command()      {}
func (CopyFile) command()        {}
func (RunProcess) command()      {}
func (BuildAssets) command()     {}
func (BuildImages) command()     {}
func (BuildView) command()       {}
func (BuildViews) command()      {}
func (FlushPartials) command()   {}
func (UnknownFile) command()     {}
func (Serve) command()           {}
func (Watch) command()           {}

// Describe renders a command with its arguments for logs.
func Describe(c Command) string {
	switch cmd := c.(type) {
	case Help:
		if cmd.Reason != "" {
			return fmt.Sprintf("Help(%s)", cmd.Reason)
		}
	case CreateDirectory:
		return fmt.Sprintf("CreateDirectory(%s)", cmd.Path)
	case DeleteFile:
		return fmt.Sprintf("DeleteFile(%s)", cmd.Path)
	case CopyFile:
		return fmt.Sprintf("CopyFile(%s)", cmd.Path)
	case RunProcess:
		return fmt.Sprintf("RunProcess(%s)", strings.Join(append([]string{cmd.Name}, cmd.Args...), " "))
	case BuildAssets:
		return fmt.Sprintf("BuildAssets(content=%t, scripts=%t)", cmd.Content, cmd.Scripts)
	case BuildView:
		return fmt.Sprintf("BuildView(%s)", cmd.Path)
	case BuildViews:
		return fmt.Sprintf("BuildViews(%s)", cmd.Directory)
	case UnknownFile:
		return fmt.Sprintf("UnknownFile(%s)", cmd.Path)
	case Serve:
		return fmt.Sprintf("Serve(%d)", cmd.Port)
	}
	return c.Kind()
}

// PreCommand is shared with pre hooks. A hook that sets Handled stops the
// command from running; post hooks still run.
type PreCommand struct {
	Handled bool
}

// PostCommand is filled in after the command ran.
type PostCommand struct {
	Err      error
	Duration time.Duration
}

// Triple wraps a command with its pre and post state.
type Triple struct {
	ID      uuid.UUID
	Pre     *PreCommand
	Command Command
	Post    *PostCommand
}

// NewTriple wraps cmd
func NewTriple(cmd Command) Triple {
	return Triple{
		ID:      uuid.New(),
		Pre:     &PreCommand{},
		Command: cmd,
		Post:    &PostCommand{},
	}
}

// Unwrap returns the commands of triples in order
func Unwrap(triples []Triple) []Command {
	cmds := make([]Command, len(triples))
	for i, t := range triples {
		cmds[i] = t.Command
	}
	return cmds
}
