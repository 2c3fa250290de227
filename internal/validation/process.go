// Package validation checks the external programs sitewright runs and the
// origins allowed to open a live reload connection.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

var dangerousCharacters = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n"}

// ValidateArgument rejects arguments that could smuggle shell syntax or
// reach outside the project directory.
func ValidateArgument(arg string) error {
	for _, char := range dangerousCharacters {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	if filepath.IsAbs(arg) {
		return fmt.Errorf("absolute path not allowed: %s", arg)
	}

	return nil
}

// AllowList builds the lookup ValidateCommand expects
func AllowList(names []string) map[string]bool {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			allowed[n] = true
		}
	}
	return allowed
}

// ValidateCommand validates a command name against an allowlist
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if !allowedCommands[command] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidateProcess validates a program and every argument it will receive.
func ValidateProcess(name string, args []string, allowedCommands map[string]bool) error {
	if err := ValidateCommand(name, allowedCommands); err != nil {
		return err
	}
	for _, arg := range args {
		if err := ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}
