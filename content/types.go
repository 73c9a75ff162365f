package content

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the timestamp layout the content API uses for publication dates.
const DateLayout = "2006-01-02T15:04:05-0700"

// Date is a publication timestamp as encoded by the content API. Pointers
// to Date are nil for documents that were never published.
type Date struct {
	time.Time
}

// UnmarshalJSON accepts the API layout and RFC 3339.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("content: invalid date %q", s)
}

// MarshalJSON writes the date back in the API layout.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Time.Format(DateLayout) + `"`), nil
}

// PostData holds the display fields of a post document.
type PostData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

// Post is a single post document. UID identifies the post in routes and
// list keys.
type Post struct {
	ID                   string   `json:"id,omitempty"`
	UID                  string   `json:"uid"`
	Type                 string   `json:"type,omitempty"`
	FirstPublicationDate *Date    `json:"first_publication_date"`
	LastPublicationDate  *Date    `json:"last_publication_date,omitempty"`
	Data                 PostData `json:"data"`
}

// Published reports whether the post carries a publication date.
func (p Post) Published() bool {
	return p.FirstPublicationDate != nil
}

// PageResult is one page of documents. An empty NextPage means there are
// no further pages.
type PageResult struct {
	Page             int    `json:"page,omitempty"`
	ResultsPerPage   int    `json:"results_per_page,omitempty"`
	TotalResultsSize int    `json:"total_results_size,omitempty"`
	TotalPages       int    `json:"total_pages,omitempty"`
	NextPage         string `json:"next_page"`
	PrevPage         string `json:"prev_page,omitempty"`
	Results          []Post `json:"results"`
}

// HasMore reports whether a continuation reference is present.
func (r PageResult) HasMore() bool {
	return r.NextPage != ""
}
