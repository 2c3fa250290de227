package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conneroisu/sitewright/internal/commands/steps"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// defaultSteps is what a bare --build stands for: the configured steps.
const defaultSteps = "default"

// stepsValue collects --build steps. It remembers whether the flag was
// given at all so that a bare --build can mean the configured steps.
type stepsValue struct {
	set   bool
	steps []string
}

func (s *stepsValue) String() string {
	return strings.Join(s.steps, ",")
}

func (s *stepsValue) Set(val string) error {
	s.set = true
	if strings.EqualFold(strings.TrimSpace(val), defaultSteps) {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if _, err := steps.Normalize(parts); err != nil {
		return err
	}
	s.steps = append(s.steps, parts...)
	return nil
}

func (s *stepsValue) Type() string {
	return "steps"
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidatePort accepts a TCP port number.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidateViewDOP accepts 0 (use the configured value) or a positive count.
func ValidateViewDOP(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid degree of parallelism: %s", value)
	}
	return nil
}

// ValidateLogLevel accepts quiet, normal and verbose
func ValidateLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "quiet", "normal", "verbose":
		return nil
	}
	return fmt.Errorf("invalid log level %q (expected quiet, normal or verbose)", value)
}
