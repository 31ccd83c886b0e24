package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
)

type staticTitles map[string]string

func (s staticTitles) Title(_ context.Context, u string) string {
	if t, ok := s[u]; ok {
		return t
	}
	return u
}

func completionBody(content string, extra string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "test-model",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": %q}}]%s
	}`, content, extra)
}

func newCompletionServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewOpenAIRequiresCredentials(t *testing.T) {
	_, err := NewOpenAI(Settings{Model: "m", Source: ".env"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tagerrors.NewGenerationError(tagerrors.CodeMissingAPIKey, "", nil)))
	assert.Contains(t, err.Error(), ".env")

	_, err = NewOpenAI(Settings{APIKey: "k"}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tagerrors.NewGenerationError(tagerrors.CodeMissingModel, "", nil)))
}

func TestOpenAIGenerate(t *testing.T) {
	srv := newCompletionServer(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "test-model", body["model"])
		msgs, _ := body["messages"].([]any)
		if assert.Len(t, msgs, 2) {
			first, _ := msgs[0].(map[string]any)
			assert.Equal(t, "system", first["role"])
		}
		_, _ = w.Write([]byte(completionBody("Generated text", "")))
	})

	gen, err := NewOpenAI(Settings{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"}, nil, nil)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), Request{System: "Be brief.", User: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Generated text", out)
}

func TestOpenAIGenerateWithoutSystemMessage(t *testing.T) {
	srv := newCompletionServer(t, func(w http.ResponseWriter, body map[string]any) {
		msgs, _ := body["messages"].([]any)
		assert.Len(t, msgs, 1)
		_, _ = w.Write([]byte(completionBody("ok", "")))
	})

	gen, err := NewOpenAI(Settings{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"}, nil, nil)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Request{User: "Hello"})
	require.NoError(t, err)
}

func TestOpenAIGenerateAppendsCitations(t *testing.T) {
	srv := newCompletionServer(t, func(w http.ResponseWriter, _ map[string]any) {
		_, _ = w.Write([]byte(completionBody("Answer",
			`, "citations": ["https://example.com/a", "https://example.com/b"]`)))
	})

	titles := staticTitles{"https://example.com/a": "Page A"}
	gen, err := NewOpenAI(Settings{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"}, titles, nil)
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), Request{User: "Q"})
	require.NoError(t, err)
	assert.Equal(t, "Answer\n\nSources: \n\n"+
		"1. [Page A](https://example.com/a)\n"+
		"2. [https://example.com/b](https://example.com/b)\n", out)
}

func TestOpenAIGenerateFailures(t *testing.T) {
	testCases := []struct {
		name string
		body string
		code int
		want string
	}{
		{name: "no choices", body: `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, code: 200, want: tagerrors.CodeMalformedResponse},
		{name: "empty content", body: completionBody("  ", ""), code: 200, want: tagerrors.CodeEmptyResponse},
		{name: "server error", body: `{"error":{"message":"boom"}}`, code: 500, want: tagerrors.CodeRequestFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newCompletionServer(t, func(w http.ResponseWriter, _ map[string]any) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			})
			gen, err := NewOpenAI(Settings{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "m"}, nil, nil)
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), Request{User: "Q"})
			require.Error(t, err)
			assert.True(t, tagerrors.IsGenerationError(err))
			assert.True(t, errors.Is(err, tagerrors.NewGenerationError(tc.want, "", nil)))
		})
	}
}

func TestCitations(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Citations(`{"citations":["a"," ","b"]}`))
	assert.Nil(t, Citations(`{"choices":[]}`))
	assert.Nil(t, Citations(`not json`))
}

func TestMock(t *testing.T) {
	m := &Mock{Response: "canned"}
	out, err := m.Generate(context.Background(), Request{User: "one"})
	require.NoError(t, err)
	assert.Equal(t, "canned", out)

	m.Err = errors.New("down")
	_, err = m.Generate(context.Background(), Request{User: "two"})
	assert.EqualError(t, err, "down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, Request{User: "three"})
	assert.ErrorIs(t, err, context.Canceled)

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "one", reqs[0].User)
}
