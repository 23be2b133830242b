package webassets

import "embed"

// FS contains embedded web assets from this directory.

//go:embed demo.html
var FS embed.FS
