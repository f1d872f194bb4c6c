package domain

import "time"

type DocumentKind string

const (
	DocumentContract     DocumentKind = "contract"
	DocumentAmortization DocumentKind = "amortization"
)

type Field struct {
	Label string
	Value string
}

// Document is the renderer-independent content of a generated document.
// Rows keep schedule order; pagination is left to the renderer.
type Document struct {
	Kind          DocumentKind
	ApplicationID string
	Title         string
	Subtitle      string
	Fields        []Field
	Columns       []string
	Rows          [][]string
	Notes         []string
	Signatures    []string
	IssuedAt      time.Time
}

func (d Document) FileName(ext string) string {
	return d.ApplicationID + "_" + string(d.Kind) + "." + ext
}
