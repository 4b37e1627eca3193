package frontend

import "embed"

//go:embed views/*.html
var viewsFS embed.FS
