package engine

import "sort"

// Document is an item with a stable id and named text fields.
type Document interface {
	DocumentID() string
	// FieldValue returns the field's text, or "" when the field is missing.
	FieldValue(name string) string
}

// Record is the plain Document implementation.
type Record struct {
	ID     string
	Fields map[string]string
}

// DocumentID implements Document.
func (r Record) DocumentID() string { return r.ID }

// FieldValue implements Document.
func (r Record) FieldValue(name string) string { return r.Fields[name] }

// Collection is a set of documents that can be walked in a stable order.
type Collection interface {
	Each(fn func(Document))
	Len() int
}

// List is an ordered collection.
type List []Document

// Each implements Collection.
func (l List) Each(fn func(Document)) {
	for _, d := range l {
		fn(d)
	}
}

// Len implements Collection.
func (l List) Len() int { return len(l) }

// Keyed is a collection keyed by arbitrary strings, walked in key order.
type Keyed map[string]Document

// Each implements Collection.
func (k Keyed) Each(fn func(Document)) {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fn(k[key])
	}
}

// Len implements Collection.
func (k Keyed) Len() int { return len(k) }
