// Package webui holds the browser client served at /.
package webui

import "embed"

//go:embed wwwroot
var Assets embed.FS

// Root is the directory inside Assets that maps to /.
const Root = "wwwroot"
