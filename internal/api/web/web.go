// Package web holds the single chat page served at the site root.
package web

import _ "embed"

//go:embed index.html
var Index []byte
