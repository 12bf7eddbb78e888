package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

var (
	// StrictPolicy strips all markup.
	StrictPolicy *bluemonday.Policy
	// EmailPolicy keeps the safe subset of rich email markup.
	EmailPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	EmailPolicy = bluemonday.UGCPolicy()
	EmailPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	EmailPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	EmailPolicy.AllowElements("ul", "ol", "li", "blockquote")
	EmailPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	EmailPolicy.AllowAttrs("href").OnElements("a")
	EmailPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	EmailPolicy.AllowAttrs("class", "id").Globally()
	EmailPolicy.RequireParseableURLs(true)
	EmailPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML sanitizes message HTML before it is stored or served.
func SanitizeHTML(html string) string {
	return EmailPolicy.Sanitize(html)
}

// HTMLToText converts message HTML to plain text for keyword scanning
// and previews.
func HTMLToText(htmlStr string) string {
	text := strings.NewReplacer(
		"<br>", "\n",
		"<br/>", "\n",
		"<br />", "\n",
		"<p>", "\n",
		"</p>", "\n",
		"&nbsp;", " ",
	).Replace(htmlStr)

	text = StrictPolicy.Sanitize(text)
	text = xhtml.UnescapeString(text)

	return strings.Join(strings.Fields(text), " ")
}

// Snippet trims plain text to a short list-view preview, breaking on a
// word boundary where possible.
func Snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= 150 {
		return text
	}
	if idx := strings.LastIndex(text[:150], " "); idx > 0 {
		return text[:idx] + "..."
	}
	return text[:150] + "..."
}
