// Package web holds the browser front end served at / and /static.
package web

import "embed"

// Assets contains index.html, docs.html and the static/ directory.
//
//go:embed index.html docs.html static
var Assets embed.FS
