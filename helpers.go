package prismblog

import (
	"os"

	"github.com/eringen/prismblog/content"
)

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lastModified returns the W3C date of the latest publication of p, or ""
// when the API sent none.
func lastModified(p content.Post) string {
	for _, d := range []*content.Date{p.LastPublicationDate, p.FirstPublicationDate} {
		if d != nil && !d.IsZero() {
			return d.UTC().Format("2006-01-02")
		}
	}
	return ""
}

