package prismblog

import "embed"

// EmbeddedAssets contains static assets shipped with prismblog:
// loadmore.js drives the home page's load-more button, logo.svg is the
// default header logo.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
