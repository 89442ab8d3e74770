package ingest

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// minArticleRunes is the smallest extraction readability may return before
// the goquery pass takes over. Sub-threshold results are usually cookie
// banners or navigation shells rather than the page's content.
const minArticleRunes = 80

// Article is text recovered from an HTML document.
type Article struct {
	Title string
	Text  string
}

// ExtractArticle recovers readable text from an HTML document.
//
// Three passes run in order, each more permissive than the last:
// readability isolates the main article body (full pages only, so it runs
// when pageURL is set), goquery strips page chrome and returns the body
// text of fragments and pages readability rejects, and a raw tokenizer
// pass keeps everything outside script and style for documents where the
// stricter passes come back empty. Returns an error only when no pass
// finds any text.
func ExtractArticle(pageURL string, body []byte) (*Article, error) {
	if len(body) == 0 {
		return nil, errors.New("empty document")
	}

	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			if article, err := readability.FromReader(bytes.NewReader(body), u); err == nil {
				text := normalizeText(article.TextContent)
				if utf8.RuneCountInString(text) >= minArticleRunes {
					return &Article{Title: strings.TrimSpace(article.Title), Text: text}, nil
				}
			}
		}
	}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		doc.Find("script,style,noscript,iframe,nav,header,footer,aside").Remove()
		title := strings.TrimSpace(doc.Find("title").First().Text())
		if text := normalizeText(doc.Find("body").Text()); text != "" {
			return &Article{Title: title, Text: text}, nil
		}
	}

	title, raw := stripTags(body)
	if text := normalizeText(raw); text != "" {
		return &Article{Title: title, Text: text}, nil
	}
	return nil, errors.New("no readable text extracted")
}

// stripTags is the last-resort extractor: a tokenizer pass keeping every
// text node outside script and style. It recovers content the structured
// passes discard, such as pages that keep all their text inside
// navigation or header chrome.
func stripTags(body []byte) (title, text string) {
	z := html.NewTokenizer(bytes.NewReader(body))
	var titleB, textB strings.Builder
	skip := 0
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(titleB.String()), textB.String()
		case html.StartTagToken:
			switch tagName(z) {
			case "script", "style":
				skip++
			case "title":
				inTitle = true
			}
		case html.EndTagToken:
			switch tagName(z) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "title":
				inTitle = false
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if inTitle {
				// Keep the first title only; later ones are usually
				// svg tooltips.
				if titleB.Len() == 0 {
					titleB.Write(z.Text())
				}
				continue
			}
			textB.Write(z.Text())
			textB.WriteByte('\n')
		}
	}
}

func tagName(z *html.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}

// normalizeText collapses whitespace: runs of spaces and tabs become one
// space, lines are trimmed, blank lines drop, and the survivors join with
// single newlines.
func normalizeText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return strings.Join(lines, "\n")
}
