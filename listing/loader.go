// Package listing loads the first page of the post listing that seeds
// every generated home page.
package listing

import (
	"context"
	"fmt"

	"github.com/eringen/prismblog/content"
)

// DefaultPageSize is the number of posts fetched per page when none is configured.
const DefaultPageSize = 1

// Querier is the part of the content client the loader needs.
type Querier interface {
	GetByType(ctx context.Context, docType string, opts content.QueryOptions) (content.PageResult, error)
}

// BuildFetchError reports that the initial listing could not be fetched.
// It aborts the generation that hit it.
type BuildFetchError struct {
	ContentType string
	Err         error
}

func (e *BuildFetchError) Error() string {
	return fmt.Sprintf("listing: fetch %q: %v", e.ContentType, e.Err)
}

func (e *BuildFetchError) Unwrap() error {
	return e.Err
}

// Loader fetches the first listing page of one content type.
type Loader struct {
	q           Querier
	contentType string
	pageSize    int
	orderings   []string
}

// NewLoader returns a Loader for contentType. A pageSize below 1 is
// replaced by DefaultPageSize.
func NewLoader(q Querier, contentType string, pageSize int, orderings ...string) *Loader {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Loader{q: q, contentType: contentType, pageSize: pageSize, orderings: orderings}
}

// ContentType returns the document type the loader queries.
func (l *Loader) ContentType() string { return l.contentType }

// PageSize returns the configured page size.
func (l *Loader) PageSize() int { return l.pageSize }

// Load issues exactly one query for the first page. Failures come back as
// *BuildFetchError and are not retried here.
func (l *Loader) Load(ctx context.Context) (content.PageResult, error) {
	res, err := l.q.GetByType(ctx, l.contentType, content.QueryOptions{
		PageSize:  l.pageSize,
		Orderings: l.orderings,
	})
	if err != nil {
		return content.PageResult{}, &BuildFetchError{ContentType: l.contentType, Err: err}
	}
	return res, nil
}
