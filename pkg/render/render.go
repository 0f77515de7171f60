// Package render turns report HTML into a stored PDF: a Renderer for
// the HTML-to-PDF conversion and an ObjectStore for the finished file.
package render

import "context"

// Renderer converts HTML into a PDF document.
type Renderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// ObjectStore persists rendered PDFs. Put stores contents under key and
// returns the URL clients download the file from.
type ObjectStore interface {
	Put(ctx context.Context, key string, contents []byte) (string, error)
}
