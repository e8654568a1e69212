// Package dom provides the read-only document model the extractors query.
//
// The extractors only see the Document and Node interfaces. HTMLDocument implements
// them over a goquery snapshot of a rendered page; live renderers attach an
// Interactor so clicks reach the real page and the snapshot is refreshed afterwards.
package dom

import (
	"errors"
)

// ErrNotInteractive is returned by Click on a snapshot without a live page behind it
var ErrNotInteractive = errors.New("document is not interactive")

// Node is a single element of the document
type Node interface {
	// Tag returns the lower-case element name
	Tag() string
	// Text returns the visible text with block boundaries rendered as newlines
	Text() string
	// Next returns the next element sibling, or nil
	Next() Node
	// Parent returns the parent element, or nil
	Parent() Node
	// Closest returns the node itself or its nearest ancestor matching selector, or nil
	Closest(selector string) Node
	// Find returns the descendants matching selector in document order
	Find(selector string) ([]Node, error)
	// Top returns the vertical offset of the node; without layout it is the document order index
	Top() float64
	// Visible reports whether the node is rendered with a non-empty box
	Visible() bool
	// Click activates the node on the live page
	Click() error
}

// Document is a queryable snapshot of a rendered page
type Document interface {
	// Query returns the nodes matching selector in document order
	Query(selector string) ([]Node, error)
	// Text returns the whole visible text of the page
	Text() (string, error)
}

// Page is a rendered document that holds renderer resources until it is closed
type Page interface {
	Document
	Close() error
}

// Snapshot is the serialised state of a rendered page
type Snapshot struct {
	HTML string
	// Text is the page's innerText when the renderer could evaluate it
	Text string
}

// Interactor is implemented by renderers that keep the page alive while it is extracted
type Interactor interface {
	// Click clicks the element addressed by a CSS selector
	Click(selector string) error
	// Snapshot captures the current state of the page
	Snapshot() (Snapshot, error)
}

// First returns the first node or nil
func First(nodes []Node, err error) Node {
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}
