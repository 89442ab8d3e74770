package ingest

import (
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
<title>Tidal Navigation Basics</title>
<script>window.analytics = { track: function() {} };</script>
<style>body { font-family: serif; }</style>
</head>
<body>
<nav><a href="/">Home</a> <a href="/charts">Charts</a></nav>
<article>
<h1>Tidal Navigation Basics</h1>
<p>Every coastal passage begins with the tide tables. The height of tide
determines which channels are open to your draft, and the timing of slack
water decides when a narrow passage can be run safely. Skippers who plan
around spring tides gain several hours of usable water each day.</p>
<p>Tidal streams matter as much as heights. A two knot current against a
small boat halves its progress, while the same current behind it shortens
a passage dramatically. The rule of twelfths gives a rough estimate of
height at any hour between high and low water.</p>
<p>Local knowledge completes the picture. Harbor masters publish sill
opening times, and pilot books record back eddies that the charts never
show. Write the calculated heights into the passage plan before leaving
the dock.</p>
</article>
<footer>Copyright notice and unrelated links.</footer>
</body>
</html>`

func TestExtractArticle(t *testing.T) {
	t.Run("full page with URL", func(t *testing.T) {
		article, err := ExtractArticle("https://example.com/navigation/tides", []byte(articleHTML))
		if err != nil {
			t.Fatalf("ExtractArticle() error = %v", err)
		}
		if !strings.Contains(article.Title, "Tidal Navigation") {
			t.Errorf("Title = %q, want it to contain %q", article.Title, "Tidal Navigation")
		}
		if !strings.Contains(article.Text, "rule of twelfths") {
			t.Errorf("Text missing article content, got %q", article.Text)
		}
		if strings.Contains(article.Text, "analytics") {
			t.Error("Text contains script content")
		}
		if strings.Contains(article.Text, "font-family") {
			t.Error("Text contains style content")
		}
	})

	t.Run("fragment without URL", func(t *testing.T) {
		fragment := `<div><p>Slack water at the narrows runs twenty minutes late.</p>
<p>The ebb sets hard onto the western shore.</p></div>`

		article, err := ExtractArticle("", []byte(fragment))
		if err != nil {
			t.Fatalf("ExtractArticle() error = %v", err)
		}
		if !strings.Contains(article.Text, "Slack water at the narrows") {
			t.Errorf("Text missing fragment content, got %q", article.Text)
		}
		if !strings.Contains(article.Text, "western shore") {
			t.Errorf("Text missing second paragraph, got %q", article.Text)
		}
	})

	t.Run("content inside page chrome", func(t *testing.T) {
		// The goquery pass strips header and nav; the tokenizer pass must
		// still recover a page that keeps all its text there.
		page := `<html><head><title>Berth Openings</title></head><body>
<header><h1>Berth Openings</h1><p>The east basin opens one hour before high water.</p></header>
<nav><a href="/fees">Mooring fees</a></nav>
</body></html>`

		article, err := ExtractArticle("", []byte(page))
		if err != nil {
			t.Fatalf("ExtractArticle() error = %v", err)
		}
		if !strings.Contains(article.Text, "east basin opens") {
			t.Errorf("Text missing header content, got %q", article.Text)
		}
		if article.Title != "Berth Openings" {
			t.Errorf("Title = %q, want %q", article.Title, "Berth Openings")
		}
	})

	t.Run("no text anywhere", func(t *testing.T) {
		page := `<html><head><script>let x = 1;</script></head><body><style>p {}</style></body></html>`

		_, err := ExtractArticle("", []byte(page))
		if err == nil {
			t.Fatal("ExtractArticle() expected error for script-only page, got nil")
		}
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := ExtractArticle("https://example.com/", nil)
		if err == nil {
			t.Fatal("ExtractArticle() expected error for empty body, got nil")
		}
	})

	t.Run("invalid page URL falls back", func(t *testing.T) {
		article, err := ExtractArticle("://broken", []byte(articleHTML))
		if err != nil {
			t.Fatalf("ExtractArticle() error = %v", err)
		}
		if !strings.Contains(article.Text, "tide tables") {
			t.Errorf("Text missing content, got %q", article.Text)
		}
	})
}

func TestStripTags(t *testing.T) {
	page := `<html><head><title>First Title</title><script>ignored()</script></head>
<body><p>Visible one.</p><style>.x{}</style><p>Visible two.</p>
<svg><title>Icon tooltip</title></svg></body></html>`

	title, text := stripTags([]byte(page))
	if title != "First Title" {
		t.Errorf("title = %q, want %q", title, "First Title")
	}
	if !strings.Contains(text, "Visible one.") || !strings.Contains(text, "Visible two.") {
		t.Errorf("text missing visible content: %q", text)
	}
	if strings.Contains(text, "ignored") {
		t.Errorf("text contains script content: %q", text)
	}
	if strings.Contains(text, ".x{}") {
		t.Errorf("text contains style content: %q", text)
	}
	if strings.Contains(title, "Icon tooltip") {
		t.Errorf("title picked up a later element: %q", title)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already clean",
			in:   "one line",
			want: "one line",
		},
		{
			name: "collapses runs of spaces and tabs",
			in:   "too    many\t\tspaces",
			want: "too many spaces",
		},
		{
			name: "trims line edges",
			in:   "   padded   \n  lines  ",
			want: "padded\nlines",
		},
		{
			name: "drops blank lines",
			in:   "first\n\n   \n\nsecond",
			want: "first\nsecond",
		},
		{
			name: "empty input",
			in:   "   \n \t \n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeText(tt.in); got != tt.want {
				t.Errorf("normalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
