// Package web holds the browser client served at /.
package web

import "embed"

//go:embed index.html app.js style.css products.json
var Assets embed.FS
