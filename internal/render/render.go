// Package render turns revision content into HTML according to a page's renderer.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"gitlab.com/golang-commonmark/markdown"
)

const (
	HTML             = "HTML"
	BBCode           = "BBCODE"
	ReStructuredText = "RESTRUCTUREDTEXT"
	Markdown         = "MARKDOWN"
)

// Names is the fixed renderer set in cycling order.
var Names = []string{HTML, BBCode, ReStructuredText, Markdown}

var md = markdown.New(markdown.HTML(true), markdown.Tables(true), markdown.XHTMLOutput(true))

// Render converts content written for the named renderer into HTML.
func Render(name, content string) (string, error) {
	switch strings.ToUpper(name) {
	case HTML:
		return content, nil
	case Markdown:
		return md.RenderToString([]byte(content)), nil
	case BBCode:
		return renderBBCode(content), nil
	case ReStructuredText:
		return "<pre>" + html.EscapeString(content) + "</pre>", nil
	default:
		return "", fmt.Errorf("unknown renderer %q", name)
	}
}

type bbRule struct {
	re   *regexp.Regexp
	repl string
}

var bbRules = []bbRule{
	{regexp.MustCompile(`(?is)\[b\](.*?)\[/b\]`), `<strong>$1</strong>`},
	{regexp.MustCompile(`(?is)\[i\](.*?)\[/i\]`), `<em>$1</em>`},
	{regexp.MustCompile(`(?is)\[u\](.*?)\[/u\]`), `<u>$1</u>`},
	{regexp.MustCompile(`(?is)\[s\](.*?)\[/s\]`), `<del>$1</del>`},
	{regexp.MustCompile(`(?is)\[code\](.*?)\[/code\]`), `<pre><code>$1</code></pre>`},
	{regexp.MustCompile(`(?is)\[quote\](.*?)\[/quote\]`), `<blockquote>$1</blockquote>`},
	{regexp.MustCompile(`(?is)\[url=(https?://[^\]\s]+)\](.*?)\[/url\]`), `<a href="$1">$2</a>`},
	{regexp.MustCompile(`(?is)\[url\](https?://[^\[\s]+)\[/url\]`), `<a href="$1">$1</a>`},
	{regexp.MustCompile(`(?is)\[img\](https?://[^\[\s]+)\[/img\]`), `<img src="$1" alt="">`},
	{regexp.MustCompile(`(?is)\[color=([#a-z0-9]+)\](.*?)\[/color\]`), `<span style="color:$1">$2</span>`},
}

func renderBBCode(content string) string {
	out := html.EscapeString(content)
	for _, rule := range bbRules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return strings.ReplaceAll(out, "\n", "<br>\n")
}
