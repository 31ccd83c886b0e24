package pipeline

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tagwriting/internal/config"
	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/generate"
	"github.com/conneroisu/tagwriting/internal/refs"
)

var fixedNow = time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	mu          sync.Mutex
	runs        map[string]int
	rewrites    int
	generations int
}

func (m *recordingMetrics) ObserveFetch(string, string) {}
func (m *recordingMetrics) ObserveCacheHit(string)      {}

func (m *recordingMetrics) ObserveRun(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs == nil {
		m.runs = map[string]int{}
	}
	m.runs[outcome]++
}

func (m *recordingMetrics) ObserveRewrite() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewrites++
}

func (m *recordingMetrics) ObserveGeneration(string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations++
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Prompt = "{prompt}|{context}|{attrs_rules}"
	cfg.Options.URLSource = false
	return cfg
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newPipeline(t *testing.T, cfg *config.Config, gen generate.Generator, metrics Metrics) *Pipeline {
	t.Helper()
	p, err := New(cfg, Deps{Generator: gen, Metrics: metrics, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return p
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "notes.md", "<prompt>Summarize this.</prompt>")
	gen := &generate.Mock{Response: "<prompt>Summary text</prompt>"}
	metrics := &recordingMetrics{}

	res, err := newPipeline(t, testConfig(), gen, metrics).Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Summary text", readFile(t, path))
	assert.Equal(t, HistoryRecorded, res.State)
	assert.Equal(t, []State{Idle, Loaded, DirectiveLocated, ReferencesExpanded, Composed, Generated, Sanitized, Persisted, HistoryRecorded}, res.Visited)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "Summary text", res.Response)

	hist := readFile(t, filepath.Join(dir, "notes.md.history.md"))
	assert.Equal(t, 1, strings.Count(hist, "Prompt: "))
	assert.Contains(t, hist, "Prompt: Summarize this.\nResult: Summary text\nTimestamp: 2025-05-04 12:00:00")
	assert.Equal(t, filepath.Join(dir, "notes.md.history.md"), res.HistoryFile)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Summarize this.|@@processing@@|", reqs[0].User)
	assert.Equal(t, 1, metrics.runs["success"])
	assert.Equal(t, 1, metrics.generations)
}

func TestRunComposesContextAndRules(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "facts.md", "The sky is blue.")
	path := writeDoc(t, dir, "doc.md", "Intro <include>facts.md</include>\n<prompt:short:unknown>Explain</prompt>\nOutro")

	cfg := testConfig()
	cfg.SystemPrompt = "Be precise."
	cfg.Attrs = map[string]string{"short": "Keep it short."}
	gen := &generate.Mock{Response: "Because."}

	_, err := newPipeline(t, cfg, gen, nil).Run(context.Background(), path)
	require.NoError(t, err)

	req := gen.Requests()[0]
	assert.Equal(t, "Be precise.", req.System)
	assert.Equal(t, "Explain|Intro The sky is blue.\n@@processing@@\nOutro|- Keep it short.", req.User)
	assert.Equal(t, "Intro <include>facts.md</include>\nBecause.\nOutro", readFile(t, path))
}

func TestRunChatDiscardsContext(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "chat.md", "Private notes <include>missing.md</include>\n<chat>Hello?</chat>")
	gen := &generate.Mock{Response: "Hi there"}

	res, err := newPipeline(t, testConfig(), gen, nil).Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Hello?|@@processing@@|", gen.Requests()[0].User)
	assert.Equal(t, "chat", res.Directive.Name)
	assert.Equal(t, "Private notes <include>missing.md</include>\nHi there", readFile(t, path))
}

func TestRunPromptBeforeChat(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "both.md", "<chat>second</chat> <prompt>first</prompt>")
	gen := &generate.Mock{Response: "done"}

	_, err := newPipeline(t, testConfig(), gen, nil).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "<chat>second</chat> done", readFile(t, path))
}

func TestRunRewriteEndsRun(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "alias.md", "Text <summary:short>long article</summary>")

	cfg := testConfig()
	cfg.Tags = []config.RewriteRule{{Tag: "summary", Format: "Summarize: {prompt}"}}
	gen := &generate.Mock{Response: "Short. <summary>again</summary>"}
	metrics := &recordingMetrics{}
	p := newPipeline(t, cfg, gen, metrics)

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, res.Rewritten)
	assert.Equal(t, "summary", res.Rule.Tag)
	assert.Equal(t, Rewritten, res.State)
	assert.Equal(t, []State{Idle, Loaded, Rewritten}, res.Visited)
	assert.Equal(t, "Text <prompt:short>Summarize: long article</prompt>", readFile(t, path))
	assert.Empty(t, gen.Requests())
	assert.NoFileExists(t, filepath.Join(dir, "alias.md.history.md"))
	assert.Equal(t, 1, metrics.rewrites)
	assert.Equal(t, 1, metrics.runs["rewritten"])

	// The persisted rewrite is picked up by the next run.
	res, err = p.Run(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, res.Rewritten)
	assert.Equal(t, HistoryRecorded, res.State)
	assert.Equal(t, []string{"short"}, res.Directive.Attrs)
	assert.Equal(t, "Summarize: long article|Text @@processing@@|", gen.Requests()[0].User)
	assert.Equal(t, "Text Short. again", readFile(t, path))
	assert.Equal(t, 1, metrics.runs["success"])
}

func TestRunSimpleMerge(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "merge.md", "# Title\n@@processing@@\nBody\n<prompt>Write the intro</prompt>\n")
	gen := &generate.Mock{Response: "An intro."}

	res, err := newPipeline(t, testConfig(), gen, nil).Run(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, res.Merged)
	assert.Equal(t, "Write the intro|# Title\n@@processing@@\nBody\n\n|", gen.Requests()[0].User)
	assert.Equal(t, "# Title\nAn intro.\nBody\n\n", readFile(t, path))
}

func TestRunSimpleMergeDisabled(t *testing.T) {
	dir := t.TempDir()
	content := "# Title\n@@processing@@\nBody\n<prompt>Write the intro</prompt>\n"
	path := writeDoc(t, dir, "merge.md", content)
	cfg := testConfig()
	cfg.Options.SimpleMerge = false
	gen := &generate.Mock{Response: "An intro."}

	res, err := newPipeline(t, cfg, gen, nil).Run(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, res.Merged)
	assert.Equal(t, "# Title\n@@processing@@\nBody\nAn intro.\n", readFile(t, path))
}

func TestRunDuplicatePrompt(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "dup.md", "<prompt>Same question</prompt>")
	cfg := testConfig()
	cfg.Options.DuplicatePrompt = true
	gen := &generate.Mock{Response: "Answer"}
	metrics := &recordingMetrics{}
	p := newPipeline(t, cfg, gen, metrics)

	res, err := p.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, HistoryRecorded, res.State)

	require.NoError(t, os.WriteFile(path, []byte("Answer <prompt>Same question</prompt>"), 0o644))
	res, err = p.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, DuplicateSkipped, res.State)
	assert.Len(t, gen.Requests(), 1)
	assert.Equal(t, "Answer <prompt>Same question</prompt>", readFile(t, path))
	assert.Equal(t, 1, metrics.runs["duplicate"])

	// Without the check the same prompt is answered again.
	cfg.Options.DuplicatePrompt = false
	res, err = newPipeline(t, cfg, gen, nil).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, HistoryRecorded, res.State)
	assert.Len(t, gen.Requests(), 2)
}

func TestRunNoDirective(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "plain.md", "Nothing to do </prompt> here")
	gen := &generate.Mock{Response: "unused"}
	metrics := &recordingMetrics{}

	res, err := newPipeline(t, testConfig(), gen, metrics).Run(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, NoDirectiveFound, res.State)
	assert.Empty(t, gen.Requests())
	assert.Equal(t, "Nothing to do </prompt> here", readFile(t, path))
	assert.NoFileExists(t, filepath.Join(dir, "plain.md.history.md"))
	assert.Equal(t, 1, metrics.runs["no_directive"])
}

func TestRunMissingIncludeAborts(t *testing.T) {
	dir := t.TempDir()
	content := "<include>absent.md</include> <prompt>Use it</prompt>"
	path := writeDoc(t, dir, "doc.md", content)
	gen := &generate.Mock{Response: "unused"}

	res, err := newPipeline(t, testConfig(), gen, nil).Run(context.Background(), path)
	require.Error(t, err)

	assert.True(t, tagerrors.IsIncludeError(err))
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, DirectiveLocated, lastBeforeFailure(res))
	assert.Empty(t, gen.Requests())
	assert.Equal(t, content, readFile(t, path))
}

func TestRunGenerationFailureLeavesDocument(t *testing.T) {
	dir := t.TempDir()
	content := "<prompt>Q</prompt>"
	path := writeDoc(t, dir, "doc.md", content)
	gen := &generate.Mock{Err: errors.New("service unavailable")}
	metrics := &recordingMetrics{}

	res, err := newPipeline(t, testConfig(), gen, metrics).Run(context.Background(), path)
	require.Error(t, err)

	assert.True(t, tagerrors.IsGenerationError(err))
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, content, readFile(t, path))
	assert.NoFileExists(t, filepath.Join(dir, "doc.md.history.md"))
	assert.Equal(t, 1, metrics.runs["failed"])
}

func TestRunMissingDocument(t *testing.T) {
	res, err := newPipeline(t, testConfig(), &generate.Mock{}, nil).Run(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	require.Error(t, err)
	assert.Equal(t, tagerrors.ErrorTypeIO, tagerrors.GetErrorType(err))
	assert.Equal(t, []State{Idle, Failed}, res.Visited)
}

func TestRunSharedCache(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "<prompt>Q</prompt>")
	cache := refs.NewSharedCache(8, time.Minute)

	p, err := New(testConfig(), Deps{Generator: &generate.Mock{Response: "A"}, Cache: cache})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), path)
	require.NoError(t, err)
}

func TestRunHook(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix tools not available on windows")
	}
	if _, err := exec.LookPath("cp"); err != nil {
		t.Skip("cp not found in PATH")
	}

	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "<prompt>Q</prompt>")

	cfg := testConfig()
	cfg.Hook.TextGenerateEnd = "cp {filepath} {filepath}.bak"

	_, err := newPipeline(t, cfg, &generate.Mock{Response: "Answer"}, nil).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Answer", readFile(t, path+".bak"))
}

func TestRunFailingHookDoesNotFailRun(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "doc.md", "<prompt>Q</prompt>")

	cfg := testConfig()
	cfg.Hook.TextGenerateEnd = "tagwriting-no-such-command {filepath}"

	res, err := newPipeline(t, cfg, &generate.Mock{Response: "Answer"}, nil).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, HistoryRecorded, res.State)
}

func TestIsHistoryFile(t *testing.T) {
	p := newPipeline(t, testConfig(), &generate.Mock{}, nil)
	assert.True(t, p.IsHistoryFile("/docs/a.md.history.md"))
	assert.False(t, p.IsHistoryFile("/docs/a.md"))
}

func TestNewRequiresGenerator(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.Error(t, err)
	_, err = New(nil, Deps{Generator: &generate.Mock{}})
	assert.Error(t, err)
}
