// Package web serves the upload page and the HTTP API.
package web

import _ "embed"

// IndexHTML is the single-page upload form.
//
//go:embed index.html
var IndexHTML []byte
