// Package pagination holds the "load more" state of a rendered listing:
// the posts shown so far and the continuation reference to the next page.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eringen/prismblog/content"
)

var (
	// ErrInvalidState is returned by LoadMore when there is no
	// continuation reference left to follow.
	ErrInvalidState = errors.New("pagination: no continuation reference")
	// ErrLoadInProgress is returned by LoadMore while another LoadMore on
	// the same session has not finished.
	ErrLoadInProgress = errors.New("pagination: load already in progress")
)

// FetchError reports a failed continuation fetch. The session is left
// exactly as it was, so the same LoadMore can be retried.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pagination: fetch %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher dereferences a continuation reference into the next page.
type Fetcher interface {
	FetchPage(ctx context.Context, ref string) (content.PageResult, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, ref string) (content.PageResult, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, ref string) (content.PageResult, error) {
	return f(ctx, ref)
}

// Session accumulates posts for one page view. Posts are only ever
// appended, in fetch order; nothing is re-sorted or deduplicated.
type Session struct {
	mu      sync.Mutex
	posts   []content.Post
	next    string
	loading bool
	fetcher Fetcher
}

// NewSession seeds a session with the page the view was rendered from.
func NewSession(initial content.PageResult, f Fetcher) *Session {
	posts := make([]content.Post, len(initial.Results))
	copy(posts, initial.Results)
	return &Session{
		posts:   posts,
		next:    initial.NextPage,
		fetcher: f,
	}
}

// Posts returns a copy of the accumulated posts.
func (s *Session) Posts() []content.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Len returns the number of accumulated posts.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// HasMore reports whether the latest continuation reference is non-empty.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next != ""
}

// NextPage returns the current continuation reference.
func (s *Session) NextPage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Loading reports whether a LoadMore is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LoadMore fetches the page behind the continuation reference, appends its
// posts and advances the reference. It returns the posts it appended.
//
// The fetch runs without holding the lock; the append and the reference
// update happen together afterwards, so a failed fetch changes nothing.
// Overlapping calls are rejected with ErrLoadInProgress.
func (s *Session) LoadMore(ctx context.Context) ([]content.Post, error) {
	s.mu.Lock()
	if s.next == "" {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	if s.loading {
		s.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	ref := s.next
	s.loading = true
	s.mu.Unlock()

	page, err := s.fetcher.FetchPage(ctx, ref)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	appended := make([]content.Post, len(page.Results))
	copy(appended, page.Results)
	s.posts = append(s.posts, appended...)
	s.next = page.NextPage
	return appended, nil
}

// Drain calls LoadMore until the session runs out of pages or holds at
// least max posts (max <= 0 means no limit), and returns the accumulated
// posts truncated to max.
func Drain(ctx context.Context, s *Session, max int) ([]content.Post, error) {
	for s.HasMore() && (max <= 0 || s.Len() < max) {
		if _, err := s.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
	posts := s.Posts()
	if max > 0 && len(posts) > max {
		posts = posts[:max]
	}
	return posts, nil
}
