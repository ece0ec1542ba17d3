package static

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/rulecrawl/pkg/render"
)

// Document is a parsed HTML page that answers CSS and XPath queries.
// It is the query engine behind static sessions and is also used by
// in-memory test providers.
type Document struct {
	base *url.URL
	html string
	doc  *goquery.Document
}

// ParseDocument parses htmlContent fetched from pageURL.
func ParseDocument(pageURL, htmlContent string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	// <base href> changes how relative links resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	return &Document{base: base, html: htmlContent, doc: doc}, nil
}

// HTML returns the document source.
func (d *Document) HTML() string {
	return d.html
}

// QueryStructural evaluates a CSS selector.
func (d *Document) QueryStructural(selector string) ([]render.Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: css %q: %v", render.ErrInvalidExpression, selector, err)
	}

	var elements []render.Element
	d.doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, render.Element{
			Text: strings.TrimSpace(s.Text()),
			Href: s.AttrOr("href", ""),
			Src:  s.AttrOr("src", ""),
		})
	})
	return elements, nil
}

// QueryTreePath evaluates an XPath expression.
func (d *Document) QueryTreePath(expr string) ([]render.Element, error) {
	if len(d.doc.Nodes) == 0 {
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(d.doc.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("%w: xpath %q: %v", render.ErrInvalidExpression, expr, err)
	}

	elements := make([]render.Element, 0, len(nodes))
	for _, n := range nodes {
		el := render.Element{Text: strings.TrimSpace(htmlquery.InnerText(n))}
		if n.Type == html.ElementNode {
			el.Href = htmlquery.SelectAttr(n, "href")
			el.Src = htmlquery.SelectAttr(n, "src")
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// Links returns the resolved href of every anchor in document order.
func (d *Document) Links() []string {
	var links []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		links = append(links, d.base.ResolveReference(ref).String())
	})
	return links
}
