// Package dashboard provides the embedded admin page for Pushcast.
//
// The page is compiled into the binary so the service ships as a single
// file. It is served by the server package at "/" and "/admin".
package dashboard

import "embed"

// Assets is an embedded filesystem containing the admin page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Send form, live subscriber count and delivery results
//
// The literal {{.Title}} in index.html is replaced with the configured title
// at request time.
//
//go:embed assets/*
var Assets embed.FS
