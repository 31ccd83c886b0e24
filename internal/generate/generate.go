// Package generate talks to the OpenAI-compatible text-generation service.
package generate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/logging"
)

// Request is one generation call: an optional system message and the
// composed user prompt.
type Request struct {
	System string
	User   string
}

// Generator produces text for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TitleResolver looks up a human-readable title for a citation URL.
type TitleResolver interface {
	Title(ctx context.Context, rawURL string) string
}

// Settings are the credentials read from the environment or a .env file.
type Settings struct {
	APIKey  string
	BaseURL string
	Model   string
	// Source names where the settings came from, for error messages.
	Source string
}

// OpenAI implements Generator with chat completions.
type OpenAI struct {
	client openai.Client
	model  string
	titles TitleResolver
	logger logging.Logger
}

// NewOpenAI validates settings and builds a client. titles may be nil, in
// which case citations are listed by URL.
func NewOpenAI(settings Settings, titles TitleResolver, logger logging.Logger) (*OpenAI, error) {
	if settings.APIKey == "" {
		return nil, tagerrors.NewGenerationError(tagerrors.CodeMissingAPIKey,
			fmt.Sprintf("API_KEY not found in %s", sourceName(settings)), nil)
	}
	if settings.Model == "" {
		return nil, tagerrors.NewGenerationError(tagerrors.CodeMissingModel,
			fmt.Sprintf("MODEL not found in %s", sourceName(settings)), nil)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(settings.APIKey),
		option.WithMaxRetries(0),
	}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  settings.Model,
		titles: titles,
		logger: logger.WithComponent("generate"),
	}, nil
}

func sourceName(s Settings) string {
	if s.Source == "" {
		return "environment"
	}
	return s.Source
}

// Generate sends req and returns the first choice's content, followed by a
// numbered Sources list when the service reports citations.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	o.logger.Debug(ctx, "Sending generation request",
		"model", o.model,
		"prompt", logging.Truncate(req.User, 2000),
	)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	})
	if err != nil {
		return "", tagerrors.NewGenerationError(tagerrors.CodeRequestFailed, "chat completion request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", tagerrors.NewGenerationError(tagerrors.CodeMalformedResponse, "response has no choices", nil)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", tagerrors.NewGenerationError(tagerrors.CodeEmptyResponse, "response content is empty", nil)
	}

	o.logger.Debug(ctx, "Received generation response",
		"response", logging.Truncate(resp.RawJSON(), 2000),
	)

	if citations := Citations(resp.RawJSON()); len(citations) > 0 {
		content += o.renderCitations(ctx, citations)
	}

	return content, nil
}

// Citations returns the top-level `citations` URLs of a raw completion body.
// Some providers (Perplexity) add them next to the standard fields.
func Citations(raw string) []string {
	var urls []string
	gjson.Get(raw, "citations").ForEach(func(_, value gjson.Result) bool {
		if u := strings.TrimSpace(value.String()); u != "" {
			urls = append(urls, u)
		}
		return true
	})
	return urls
}

func (o *OpenAI) renderCitations(ctx context.Context, urls []string) string {
	var b strings.Builder
	b.WriteString("\n\nSources: \n\n")
	for i, u := range urls {
		title := u
		if o.titles != nil {
			title = o.titles.Title(ctx, u)
		}
		fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, u)
	}
	return b.String()
}

// Mock is a Generator returning a canned response. It records every
// request it receives.
type Mock struct {
	Response string
	Err      error

	mu       sync.Mutex
	requests []Request
}

// Generate records req and returns the canned result.
func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Requests returns a copy of the recorded requests.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
