package refs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
)

var wikipediaTagRe = regexp.MustCompile(`(?s)<wikipedia>(.*?)</wikipedia>`)

// Source is one Wikipedia lookup. Found is false when the query failed; such
// sources are kept for reporting but contribute nothing to the rendered
// block.
type Source struct {
	Title   string
	Extract string
	Found   bool
}

// WikipediaClient queries the REST summary endpoint.
type WikipediaClient struct {
	fetcher  *Fetcher
	endpoint string
}

// NewWikipediaClient creates a client. An empty endpoint selects
// https://{lang}.wikipedia.org/api/rest_v1.
func NewWikipediaClient(fetcher *Fetcher, endpoint, lang string) *WikipediaClient {
	if lang == "" {
		lang = "en"
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/api/rest_v1", lang)
	}
	return &WikipediaClient{fetcher: fetcher, endpoint: strings.TrimRight(endpoint, "/")}
}

// Summary returns the plain-text extract of a page. An empty extract with a
// nil error means the page exists but has no summary.
func (w *WikipediaClient) Summary(ctx context.Context, title string) (string, error) {
	address := w.endpoint + "/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))

	res, err := w.fetcher.Fetch(ctx, address)
	if err != nil {
		return "", tagerrors.NewFetchError(tagerrors.CodeWikipedia, "wikipedia request failed", err).
			WithContext("title", title)
	}
	if !res.OK() {
		return "", tagerrors.NewFetchError(tagerrors.CodeWikipedia,
			fmt.Sprintf("wikipedia answered HTTP %d", res.StatusCode), nil).WithContext("title", title)
	}
	if !gjson.Valid(res.Body) {
		return "", tagerrors.NewFetchError(tagerrors.CodeWikipedia, "wikipedia returned malformed JSON", nil).
			WithContext("title", title)
	}

	return strings.TrimSpace(gjson.Get(res.Body, "extract").String()), nil
}

// WikipediaTitles returns the distinct titles of all `<wikipedia>` tags in
// order of first appearance.
func WikipediaTitles(text string) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, m := range wikipediaTagRe.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(m[1])
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}
	return titles
}

// ExpandWikipedia looks up every distinct `<wikipedia>` title and, when at
// least one extract was found, removes the tags and prepends the rendered
// source block. Otherwise text is returned unchanged. Failures degrade per
// title and never fail the expansion.
func (r *Resolver) ExpandWikipedia(ctx context.Context, text string, cache Cache) (string, []Source) {
	titles := WikipediaTitles(text)
	if len(titles) == 0 {
		return text, nil
	}

	sources := make([]Source, 0, len(titles))
	for _, title := range titles {
		key := WikipediaKeyPrefix + title
		if entry, ok := cache.Get(key); ok {
			r.recorder.ObserveCacheHit("wikipedia")
			sources = append(sources, Source{Title: title, Extract: entry.Text, Found: entry.Found})
			continue
		}

		extract, err := r.wiki.Summary(ctx, title)
		switch {
		case err != nil:
			r.recorder.ObserveFetch("wikipedia", "error")
			r.logger.Warn(ctx, err, "Wikipedia lookup failed", "title", title)
			sources = append(sources, Source{Title: title})
		case extract == "":
			r.recorder.ObserveFetch("wikipedia", "empty")
			r.logger.Debug(ctx, "Wikipedia page has no extract", "title", title)
		default:
			r.recorder.ObserveFetch("wikipedia", "ok")
			cache.Put(key, Entry{Text: extract, Found: true})
			sources = append(sources, Source{Title: title, Extract: extract, Found: true})
		}
	}

	if RenderSources(sources) == "" {
		return text, sources
	}
	return PrependSources(wikipediaTagRe.ReplaceAllString(text, ""), sources), sources
}

// RenderSources renders the `# Wikipedia resources:` block. It returns an
// empty string when no source has an extract.
func RenderSources(sources []Source) string {
	var b strings.Builder
	for _, s := range sources {
		if !s.Found {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("# Wikipedia resources:\n")
		}
		b.WriteString("\n## ")
		b.WriteString(s.Title)
		b.WriteString("\n")
		b.WriteString(s.Extract)
		b.WriteString("\n")
	}
	return b.String()
}

// PrependSources puts the rendered block in front of context. Without any
// renderable source, context is returned byte-for-byte.
func PrependSources(context string, sources []Source) string {
	block := RenderSources(sources)
	if block == "" {
		return context
	}
	return block + "\n" + context
}
