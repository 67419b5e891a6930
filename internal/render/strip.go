package render

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags returns the visible text of an HTML fragment with whitespace collapsed.
func StripTags(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if isInvisible(z) {
				skip++
			}
		case html.EndTagToken:
			if isInvisible(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isInvisible(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	tag := string(name)
	return tag == "script" || tag == "style"
}
