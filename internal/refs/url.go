package refs

import (
	"context"
	"regexp"
	"strings"

	tagerrors "github.com/conneroisu/tagwriting/internal/errors"
	"github.com/conneroisu/tagwriting/internal/validation"
)

var urlTagRe = regexp.MustCompile(`(?s)<url>(.*?)</url>`)

// ExpandURLs replaces every `<url>address</url>` with the fetched content.
//
// A non-success status substitutes an empty string and expansion goes on. A
// transport failure abandons URL expansion altogether: the original text is
// returned unchanged, together with the fetch error for the caller to log.
func (r *Resolver) ExpandURLs(ctx context.Context, text string, cache Cache) (string, error) {
	matches := urlTagRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		address := strings.TrimSpace(text[m[2]:m[3]])
		content, err := r.resolveURL(ctx, address, cache)
		if err != nil {
			return text, err
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(content)
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String(), nil
}

func (r *Resolver) resolveURL(ctx context.Context, address string, cache Cache) (string, error) {
	if entry, ok := cache.Get(address); ok {
		r.recorder.ObserveCacheHit("url")
		return entry.Text, nil
	}

	res, err := r.fetcher.Fetch(ctx, address)
	if err != nil {
		r.recorder.ObserveFetch("url", "error")
		return "", tagerrors.NewFetchError(tagerrors.CodeURLTransport, "cannot fetch url", err).
			WithContext("url", address)
	}

	if !res.OK() {
		r.recorder.ObserveFetch("url", "status")
		r.logger.Warn(ctx, nil, "URL answered with non-success status",
			"url", address, "status", res.StatusCode)
		cache.Put(address, Entry{Found: false})
		return "", nil
	}

	content := res.Body
	if LooksLikeMarkup(res.ContentType, content) {
		converted, err := r.converter.Convert(content)
		if err != nil {
			r.logger.Warn(ctx, err, "Markup conversion failed, stripping tags", "url", address)
			converted = StripMarkup(content)
		}
		content = converted
	}
	content = strings.TrimSpace(validation.SanitizeInput(content))

	r.recorder.ObserveFetch("url", "ok")
	cache.Put(address, Entry{Text: content, Found: true})
	return content, nil
}
