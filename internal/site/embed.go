// Package site renders the static index page from a batch report.
package site

import "embed"

//go:embed index.tmpl
var embeddedFS embed.FS
