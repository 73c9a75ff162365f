package prismblog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/logger"
)

// fakeCMS serves a fixed set of posts the way the content API does:
// page by page, each page linking to the next one.
type fakeCMS struct {
	*httptest.Server

	mu        sync.Mutex
	posts     []content.Post
	pageSize  int
	failPages map[int]bool
	failAll   bool
	searches  int
}

var uidPredicate = regexp.MustCompile(`my\.\w+\.uid,"([^"]*)"`)

func newFakeCMS(t *testing.T, n int) *fakeCMS {
	t.Helper()
	f := &fakeCMS{pageSize: 1, failPages: map[int]bool{}}
	f.setPosts(n)
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func testPost(i int) content.Post {
	return content.Post{
		UID:                  fmt.Sprintf("post-%d", i),
		FirstPublicationDate: &content.Date{Time: time.Date(2021, time.March, 25-i, 19, 25, 28, 0, time.UTC)},
		Data: content.PostData{
			Title:    fmt.Sprintf("Post %d", i),
			Subtitle: fmt.Sprintf("Subtitle %d", i),
			Author:   "Joseph Oliveira",
		},
	}
}

func (f *fakeCMS) setPosts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = make([]content.Post, n)
	for i := range f.posts {
		f.posts[i] = testPost(i + 1)
	}
}

func (f *fakeCMS) setFailPage(page int, fail bool) {
	f.mu.Lock()
	f.failPages[page] = fail
	f.mu.Unlock()
}

func (f *fakeCMS) setFailAll(fail bool) {
	f.mu.Lock()
	f.failAll = fail
	f.mu.Unlock()
}

func (f *fakeCMS) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

func (f *fakeCMS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/v2":
		_, _ = w.Write([]byte(`{"refs":[{"id":"master","ref":"MASTER","label":"Master","isMasterRef":true}]}`))
		return
	case "/api/v2/documents/search":
	default:
		http.NotFound(w, r)
		return
	}

	f.searches++
	if f.failAll {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	if m := uidPredicate.FindStringSubmatch(r.URL.Query().Get("q")); m != nil {
		res := content.PageResult{Page: 1, Results: []content.Post{}}
		for _, p := range f.posts {
			if p.UID == m[1] {
				res.Results = append(res.Results, p)
			}
		}
		_ = json.NewEncoder(w).Encode(res)
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		page, _ = strconv.Atoi(v)
	}
	if f.failPages[page] {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	start := (page - 1) * f.pageSize
	end := start + f.pageSize
	if start > len(f.posts) {
		start = len(f.posts)
	}
	if end > len(f.posts) {
		end = len(f.posts)
	}
	res := content.PageResult{
		Page:             page,
		ResultsPerPage:   f.pageSize,
		TotalResultsSize: len(f.posts),
		Results:          f.posts[start:end],
	}
	if end < len(f.posts) {
		res.NextPage = "/api/v2/documents/search?ref=MASTER&page=" + strconv.Itoa(page+1)
	}
	_ = json.NewEncoder(w).Encode(res)
}

func testConfig(t *testing.T, cms *fakeCMS) SiteConfig {
	t.Helper()
	return SiteConfig{
		Name:             "Spacetraveling",
		URL:              "https://blog.example.com",
		SessionSecret:    "test-session-secret",
		AdminPassword:    "admin-pass",
		RevalidateSecret: "hook-secret",
		DatabasePath:     filepath.Join(t.TempDir(), "prismblog.db"),
		Content: ContentConfig{
			Endpoint:    cms.URL + "/api/v2",
			MaxAttempts: 1,
		},
	}
}

func newTestApp(t *testing.T, cms *fakeCMS) *App {
	t.Helper()
	a := New(testConfig(t, cms), WithLogger(logger.NewNop()), WithStaticDir(t.TempDir()))
	require.NoError(t, a.Setup())
	t.Cleanup(func() { _ = a.Close() })
	return a
}
