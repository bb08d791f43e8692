// Package dashboard provides the embedded web page for eventpipe.
//
// The page lists published events as they arrive over Server-Sent Events and
// shows the pipeline state. It is served by the internal server package at
// "/" when a listen address is configured.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Event stream page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
