// Package extract pulls readable article text out of web pages. It tries
// Mozilla readability first, then a list of common article container
// selectors, then a bare paragraph heuristic.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrNoArticle indicates the page has no recognizable article content.
var ErrNoArticle = errors.New("no article content found")

// Extraction methods, recorded on the result so callers can see which
// heuristic produced the text.
const (
	MethodReadability = "readability"
	MethodSelectors   = "common-selectors"
	MethodParagraphs  = "paragraphs"
)

// Thresholds below which a candidate container is rejected as boilerplate.
const (
	minContainerLen = 500
	minParagraphLen = 1000
)

// Container selectors tried in order. Ordered roughly by specificity, with
// site-specific classes seen in the wild near the end.
var containerSelectors = []string{
	"article",
	`[role="article"]`,
	".post-content",
	".article-content",
	".post-body",
	".entry-content",
	".content-body",
	"#content",
	".content",
	".post",
	".article",
	"main",
	".blog-post",
	".blog-detail",
	".blog-entry",
	".blog-container",
	".blog-article",
	".blog-body",
	".post-text",
	".post-entry",
	".entry",
	".blog-entry-content",
	".blog-text",
	".story-content",
	".article-text",
	".main-content",
	".page-content",
	".single-content",
}

// Result is the extracted article.
type Result struct {
	Title    string
	Text     string
	Markdown string
	Method   string
}

// Extractor fetches pages and extracts article text from them.
type Extractor struct {
	http      *http.Client
	converter *md.Converter
}

// New creates an Extractor with the given fetch timeout.
func New(timeout time.Duration) *Extractor {
	return &Extractor{
		http:      &http.Client{Timeout: timeout},
		converter: md.NewConverter("", true, nil),
	}
}

// FromURL downloads a page and extracts its article.
func (e *Extractor) FromURL(ctx context.Context, pageURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; blogcast/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}
	return e.FromHTML(string(body), pageURL)
}

// FromHTML extracts an article from already-fetched HTML. pageURL is used
// to resolve relative links and may be empty.
func (e *Extractor) FromHTML(html, pageURL string) (Result, error) {
	if res, ok := e.viaReadability(html, pageURL); ok {
		return res, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}
	if res, ok := e.viaSelectors(doc); ok {
		return res, nil
	}
	if res, ok := e.viaParagraphs(doc); ok {
		return res, nil
	}
	return Result{}, ErrNoArticle
}

func (e *Extractor) viaReadability(html, pageURL string) (Result, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return Result{}, false
	}
	text := CleanText(article.TextContent)
	if len(text) < minContainerLen {
		return Result{}, false
	}
	return Result{
		Title:    article.Title,
		Text:     text,
		Markdown: e.toMarkdown(article.Content),
		Method:   MethodReadability,
	}, true
}

func (e *Extractor) viaSelectors(doc *goquery.Document) (Result, bool) {
	for _, selector := range containerSelectors {
		// Several blogs have multiple matching containers; keep the one
		// with the most text.
		var best *goquery.Selection
		bestLen := 0
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if n := len(CleanText(s.Text())); n > bestLen {
				bestLen = n
				best = s
			}
		})
		if best == nil || bestLen < minContainerLen {
			continue
		}
		return Result{
			Title:    pageTitle(doc),
			Text:     CleanText(best.Text()),
			Markdown: e.selectionMarkdown(best),
			Method:   MethodSelectors,
		}, true
	}
	return Result{}, false
}

// viaParagraphs is the last resort: pages with enough <p> text but no
// recognizable container.
func (e *Extractor) viaParagraphs(doc *goquery.Document) (Result, bool) {
	paragraphs := doc.Find("p")
	if paragraphs.Length() <= 5 {
		return Result{}, false
	}
	var parts []string
	paragraphs.Each(func(_ int, s *goquery.Selection) {
		if t := CleanText(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	text := strings.Join(parts, "\n")
	if len(text) < minParagraphLen {
		return Result{}, false
	}
	return Result{
		Title:  pageTitle(doc),
		Text:   text,
		Method: MethodParagraphs,
	}, true
}

func (e *Extractor) toMarkdown(html string) string {
	out, err := e.converter.ConvertString(html)
	if err != nil {
		return ""
	}
	return out
}

func (e *Extractor) selectionMarkdown(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return e.toMarkdown(html)
}

func pageTitle(doc *goquery.Document) string {
	if t := CleanText(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return CleanText(doc.Find("title").First().Text())
}

var (
	newlineRe    = regexp.MustCompile(`[\r\n]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText collapses runs of whitespace into single spaces and trims the
// result.
func CleanText(text string) string {
	cleaned := newlineRe.ReplaceAllString(text, "\n")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
