// Package logging configures log/slog for resourcesearch.
//
// Library packages log through an injected *slog.Logger and default to
// slog.Default(). The CLI installs a text handler on stderr, or with --debug
// a JSON handler writing to a size-rotated file under ~/.resourcesearch/logs.
package logging
