package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFlagValidation(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var format string
	flags.StringVar(&format, "format", "text", "")

	AddFlagValidation(flags, "format", ValidateOutputFormat)
	AddFlagValidation(flags, "missing", ValidateOutputFormat)

	require.NoError(t, flags.Parse([]string{"--format", "json"}))
	assert.Equal(t, "json", format)

	assert.Error(t, flags.Parse([]string{"--format", "yaml"}))
	assert.Equal(t, "json", format)
}

func TestValidators(t *testing.T) {
	testCases := []struct {
		name      string
		validator func(string) error
		value     string
		wantErr   bool
	}{
		{"level debug", ValidateLogLevel, "debug", false},
		{"level unknown", ValidateLogLevel, "loud", true},
		{"format json", ValidateOutputFormat, "json", false},
		{"format xml", ValidateOutputFormat, "xml", true},
		{"addr empty", ValidateListenAddr, "", false},
		{"addr port only", ValidateListenAddr, ":9090", false},
		{"addr host", ValidateListenAddr, "127.0.0.1:9090", false},
		{"addr no port", ValidateListenAddr, "localhost", true},
		{"addr zero port", ValidateListenAddr, ":0", true},
		{"addr big port", ValidateListenAddr, ":70000", true},
		{"addr named port", ValidateListenAddr, ":http", true},
		{"llm plain", ValidateLLMName, "grok", false},
		{"llm empty", ValidateLLMName, "", false},
		{"llm traversal", ValidateLLMName, "../secrets", true},
		{"llm separator", ValidateLLMName, "a/b", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.validator(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
