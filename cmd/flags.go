package cmd

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conneroisu/tagwriting/internal/logging"
)

// AddFlagValidation makes flagName in flags reject values that validator
// refuses, at parse time.
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
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

// ValidateLogLevel accepts the levels logging.ParseLevel knows.
func ValidateLogLevel(s string) error {
	_, err := logging.ParseLevel(s)
	return err
}

// ValidateOutputFormat accepts "text" and "json".
func ValidateOutputFormat(s string) error {
	switch s {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("unsupported format: %s (supported: text, json)", s)
}

// ValidateListenAddr accepts host:port with a port between 1 and 65535.
// An empty address disables the listener.
func ValidateListenAddr(addr string) error {
	if addr == "" {
		return nil
	}

	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	return nil
}

// ValidateLLMName accepts profile names usable in ".env.<llm>".
func ValidateLLMName(name string) error {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid llm name %q: must not contain path separators", name)
	}
	return nil
}
