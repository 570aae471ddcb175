// Package engine is the text index behind every searchable resource.
//
// An Engine is an in-memory bleve index over one resource's documents.
// Callers feed it (id, text) pairs with IndexDocument and query it with
// Search; a document matches when every query token matches one of its
// indexed tokens under the configured IndexMode. Results come back in
// document insertion order, and recent query results are cached.
//
// Engines are cheap to build and are rebuilt from scratch whenever the
// underlying collection changes, so there is no delete or update path.
package engine
