package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill(t *testing.T) {
	testCases := []struct {
		name     string
		tmpl     string
		values   map[string]string
		expected string
	}{
		{"simple", "Q: {prompt}", map[string]string{"prompt": "why"}, "Q: why"},
		{"repeated", "{a}-{a}", map[string]string{"a": "x"}, "x-x"},
		{"escaped braces", "{{prompt}} is {prompt}", map[string]string{"prompt": "p"}, "{prompt} is p"},
		{"unknown kept", "{other} {prompt}", map[string]string{"prompt": "p"}, "{other} p"},
		{"not an identifier", "{ not } {1x}", nil, "{ not } {1x}"},
		{"unterminated", "tail {prompt", map[string]string{"prompt": "p"}, "tail {prompt"},
		{"json-like", `{"k": {prompt}}`, map[string]string{"prompt": "1"}, `{"k": 1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Fill(tc.tmpl, tc.values))
		})
	}
}

func TestFillIsSinglePass(t *testing.T) {
	out := Fill("{prompt}|{context}", map[string]string{
		"prompt":  "{context}",
		"context": "ctx",
	})
	assert.Equal(t, "{context}|ctx", out)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"context", "prompt"}, Names("{prompt} {context} {prompt} {{x}}"))
	assert.Empty(t, Names("no placeholders"))
}

func TestValidate(t *testing.T) {
	allowed := []string{"prompt", "context", "attrs_rules"}

	require.NoError(t, Validate("{prompt}{context}{attrs_rules}", allowed, allowed))

	err := Validate("{prompt}{context}", allowed, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{attrs_rules}")

	err = Validate("{prompt}{context}{attrs_rules}{wikipedia}", allowed, allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown placeholder {wikipedia}")

	require.NoError(t, Validate("plain", []string{"filename"}, nil))
}
