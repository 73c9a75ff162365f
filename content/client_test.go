package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiInfoBody = `{"refs":[{"id":"preview","ref":"P1","label":"Preview","isMasterRef":false},{"id":"master","ref":"MASTER","label":"Master","isMasterRef":true}]}`

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Endpoint:    srv.URL + "/api/v2",
		AccessToken: "secret",
		Retry:       RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	_, err = NewClient(Config{Endpoint: "ftp://example.com/api"})
	require.Error(t, err)

	c, err := NewClient(Config{Endpoint: "https://blog.cdn.prismic.io/api/v2/"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v2", c.endpoint.Path)
}

func TestGetByType_QueryShape(t *testing.T) {
	var searchQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2":
			assert.Equal(t, "secret", r.URL.Query().Get("access_token"))
			_, _ = w.Write([]byte(apiInfoBody))
		case "/api/v2/documents/search":
			searchQuery.Store(r.URL.Query())
			_, _ = w.Write([]byte(`{
				"page": 1, "results_per_page": 1, "total_results_size": 2, "total_pages": 2,
				"next_page": "/api/v2/documents/search?page=2",
				"results": [{"uid": "hello", "first_publication_date": "2021-03-25T19:25:28+0000",
					"data": {"title": "Hello", "subtitle": "First", "author": "Ana"}}]
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.GetByType(context.Background(), "posts", QueryOptions{PageSize: 1})
	require.NoError(t, err)

	q := searchQuery.Load().(url.Values)
	assert.Equal(t, "MASTER", q.Get("ref"))
	assert.Equal(t, `[[at(document.type,"posts")]]`, q.Get("q"))
	assert.Equal(t, "1", q.Get("pageSize"))
	assert.Equal(t, "secret", q.Get("access_token"))

	require.Len(t, res.Results, 1)
	assert.Equal(t, "hello", res.Results[0].UID)
	assert.Equal(t, "Hello", res.Results[0].Data.Title)
	require.NotNil(t, res.Results[0].FirstPublicationDate)
	assert.Equal(t, 2021, res.Results[0].FirstPublicationDate.Year())
	assert.True(t, res.HasMore())
	assert.Equal(t, 2, res.TotalPages)
}

func TestGetByUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2" {
			_, _ = w.Write([]byte(apiInfoBody))
			return
		}
		if strings.Contains(r.URL.Query().Get("q"), `"missing"`) {
			_, _ = w.Write([]byte(`{"results": [], "next_page": null}`))
			return
		}
		assert.Equal(t, `[[at(my.posts.uid,"hello")]]`, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results": [{"uid": "hello", "first_publication_date": null, "data": {"title": "Hello"}}], "next_page": null}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	post, err := c.GetByUID(context.Background(), "posts", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Data.Title)
	assert.False(t, post.Published())

	_, err = c.GetByUID(context.Background(), "posts", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRef_NoMaster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refs":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Ref(context.Background())
	assert.ErrorIs(t, err, ErrNoMasterRef)
}

func TestGetByType_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/api/v2" {
			_, _ = w.Write([]byte(apiInfoBody))
			return
		}
		_, _ = w.Write([]byte(`{"results": [], "next_page": ""}`))
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv).GetByType(context.Background(), "posts", QueryOptions{PageSize: 1})
	require.NoError(t, err)
	assert.False(t, res.HasMore())
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestGetByType_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GetByType(context.Background(), "posts", QueryOptions{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.NotContains(t, se.URL, "secret")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchPage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("page") == "3" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"results": [{"uid": "p2", "data": {"title": "Two"}}], "next_page": null}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.FetchPage(context.Background(), srv.URL+"/api/v2/documents/search?page=2")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "p2", res.Results[0].UID)
	assert.False(t, res.HasMore())

	res, err = c.FetchPage(context.Background(), "/api/v2/documents/search?page=2")
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)

	atomic.StoreInt32(&calls, 0)
	_, err = c.FetchPage(context.Background(), "/api/v2/documents/search?page=3")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "continuation fetches are not retried")
}

func TestFetchPage_ForeignHost(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "https://blog.cdn.prismic.io/api/v2"})
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), "https://evil.example.com/page2")
	assert.ErrorIs(t, err, ErrForeignReference)
}

func TestDate_JSON(t *testing.T) {
	var p Post
	require.NoError(t, json.Unmarshal([]byte(`{"uid":"a","first_publication_date":"2021-03-25T19:25:28+0000","data":{}}`), &p))
	require.NotNil(t, p.FirstPublicationDate)
	assert.Equal(t, time.March, p.FirstPublicationDate.Month())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"first_publication_date":"2021-03-25T19:25:28+0000"`)

	var rfc Post
	require.NoError(t, json.Unmarshal([]byte(`{"first_publication_date":"2021-03-25T19:25:28Z"}`), &rfc))
	require.NotNil(t, rfc.FirstPublicationDate)

	var null Post
	require.NoError(t, json.Unmarshal([]byte(`{"first_publication_date":null}`), &null))
	assert.Nil(t, null.FirstPublicationDate)

	var bad Post
	assert.Error(t, json.Unmarshal([]byte(`{"first_publication_date":"yesterday"}`), &bad))
}
