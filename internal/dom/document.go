// Package dom holds parsed snapshots of rendered pages.
//
// A Document is taken once per navigation and never touches the browser
// again, so everything that reads it is a plain function of its input.
package dom

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is an immutable snapshot of a page's HTML.
type Document struct {
	url string
	doc *goquery.Document
}

// Parse builds a Document from raw HTML served at pageURL.
func Parse(pageURL, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{url: pageURL, doc: doc}, nil
}

// URL returns the address the snapshot was taken from.
func (d *Document) URL() string {
	return d.url
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return cleanText(d.doc.Find("title").First().Text())
}

// Text returns the text content of the first element matching selector with
// surrounding whitespace removed. Inner line breaks are kept.
func (d *Document) Text(selector string) (string, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

// Attr returns the trimmed attribute of the first element matching selector.
func (d *Document) Attr(selector, attr string) (string, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	v, ok := sel.Attr(attr)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Texts returns the trimmed text of every element matching selector, in
// document order.
func (d *Document) Texts(selector string) []string {
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

// Element is one node of a repeated group, queried relative to itself.
type Element struct {
	sel *goquery.Selection
}

// Each calls fn for every element matching selector.
func (d *Document) Each(selector string, fn func(Element)) {
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		fn(Element{sel: s})
	})
}

// ChildText returns the trimmed text of the first descendant matching
// selector.
func (e Element) ChildText(selector string) (string, bool) {
	sel := e.sel.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

// Links returns the href of every element matching selector, resolved
// against the document URL and stripped of fragments. Order and
// repetitions are preserved; empty, fragment-only and javascript: links
// are dropped.
func (d *Document) Links(selector string) []string {
	base, _ := url.Parse(d.url)

	var links []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		if strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		link, err := url.Parse(href)
		if err != nil {
			return
		}
		if !link.IsAbs() && base != nil {
			link = base.ResolveReference(link)
		}
		link.Fragment = ""
		links = append(links, link.String())
	})
	return links
}

// cleanText collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
