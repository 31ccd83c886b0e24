package refs

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

// Mode selects how markup fetched for a `<url>` tag is turned into text.
type Mode string

const (
	// ModeStrip removes everything between angle brackets.
	ModeStrip Mode = "strip"
	// ModeText keeps the text nodes of <main>, or of the whole page.
	ModeText Mode = "text"
	// ModeMarkdown converts the page to markdown.
	ModeMarkdown Mode = "markdown"
)

// ParseMode validates a configured url mode; empty means ModeStrip.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStrip:
		return ModeStrip, nil
	case ModeText:
		return ModeText, nil
	case ModeMarkdown:
		return ModeMarkdown, nil
	default:
		return "", fmt.Errorf("unknown url mode %q (strip, text, markdown)", s)
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "blockquote": true,
}

var (
	markupTagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// LooksLikeMarkup reports whether fetched content should be treated as
// HTML/XML rather than plain text.
func LooksLikeMarkup(contentType, body string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") || strings.Contains(ct, "xml") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}

// Converter turns fetched markup into text for the generation context.
type Converter struct {
	mode     Mode
	collapse bool
	markdown *md.Converter
}

// NewConverter creates a converter. collapse squeezes whitespace runs in
// ModeText output.
func NewConverter(mode Mode, collapse bool) *Converter {
	c := &Converter{mode: mode, collapse: collapse}
	if mode == ModeMarkdown {
		c.markdown = md.NewConverter("", true, nil)
		c.markdown.Use(plugin.GitHubFlavored())
	}
	return c
}

// Convert applies the configured mode to markup.
func (c *Converter) Convert(markup string) (string, error) {
	switch c.mode {
	case ModeText:
		return extractText(markup, c.collapse), nil
	case ModeMarkdown:
		out, err := c.markdown.ConvertString(markup)
		if err != nil {
			return "", err
		}
		return excessiveLinesRe.ReplaceAllString(out, "\n\n\n"), nil
	default:
		return StripMarkup(markup), nil
	}
}

// StripMarkup crudely removes every `<...>` sequence.
func StripMarkup(s string) string {
	return markupTagRe.ReplaceAllString(s, "")
}

// extractText returns the text of the <main> element, or of the whole
// document when there is none, skipping script and style content.
func extractText(markup string, collapse bool) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return StripMarkup(markup)
	}

	root := findElement(doc, "main")
	if root == nil {
		root = doc
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript" || n.Data == "title") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(root)

	text := b.String()
	if collapse {
		return strings.Join(strings.Fields(text), " ")
	}
	return text
}

// ExtractTitle returns the content of the first <title> element.
func ExtractTitle(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	node := findElement(doc, "title")
	if node == nil || node.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(node.FirstChild.Data)
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}
