package tokenizer

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the text extracted from one HTML document.
type Page struct {
	Title string
	// Text holds every visible text node in document order.
	Text []string
	// Emphasis holds text rendered bold or as a heading.
	Emphasis []string
	// Links holds raw href values of anchors, in document order.
	Links []string
}

// ParsePage extracts title, visible text, emphasised text and anchors.
func ParsePage(content string) (*Page, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	p := &Page{}
	p.walk(root, false, false)
	return p, nil
}

func (p *Page) walk(n *html.Node, hidden, emphasised bool) {
	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text == "" || hidden {
			return
		}
		p.Text = append(p.Text, text)
		if emphasised {
			p.Emphasis = append(p.Emphasis, text)
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Title:
			if n.FirstChild != nil && p.Title == "" {
				p.Title = strings.TrimSpace(n.FirstChild.Data)
			}
			hidden = true
		case atom.Style, atom.Script, atom.Head, atom.Meta, atom.Noscript, atom.Template:
			hidden = true
		case atom.B, atom.Strong, atom.H1, atom.H2, atom.H3, atom.H4:
			emphasised = true
		case atom.A:
			for _, attr := range n.Attr {
				if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
					p.Links = append(p.Links, strings.TrimSpace(attr.Val))
				}
			}
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, hidden, emphasised)
	}
}

// Fingerprint hashes the visible text with whitespace and slashes removed.
// Pages with equal fingerprints are treated as content duplicates.
func (p *Page) Fingerprint() uint64 {
	h := xxhash.New()
	for _, text := range p.Text {
		h.WriteString(strings.Map(func(r rune) rune {
			switch r {
			case ' ', '\n', '\t', '\r', '/':
				return -1
			}
			return r
		}, text))
	}
	return h.Sum64()
}
