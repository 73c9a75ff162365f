package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/prismblog/content"
)

var testSite = Site{Name: "Spacetraveling", URL: "https://blog.example.com", Locale: "pt_BR", LoadMoreLabel: "Carregar mais posts"}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func date(y int, m time.Month, d int) *content.Date {
	return &content.Date{Time: time.Date(y, m, d, 19, 25, 28, 0, time.UTC)}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(nil, "pt_BR"))
	assert.Equal(t, "", FormatDate(&content.Date{}, "pt_BR"))
	assert.Equal(t, "25 Apr 2021", FormatDate(date(2021, time.April, 25), ""))
	assert.True(t, strings.EqualFold("25 abr 2021", FormatDate(date(2021, time.April, 25), "pt_BR")),
		"got %q", FormatDate(date(2021, time.April, 25), "pt_BR"))
	assert.True(t, strings.EqualFold("05 fev 2022", FormatDate(date(2022, time.February, 5), "pt_BR")))
}

func TestHome_WithMorePosts(t *testing.T) {
	posts := []content.Post{{
		UID:                  "como-utilizar-hooks",
		FirstPublicationDate: date(2021, time.March, 15),
		Data:                 content.PostData{Title: "Como utilizar Hooks", Subtitle: "Pensando em sincronização", Author: "Joseph Oliveira"},
	}}
	out := render(t, Home(testSite, posts, HomeData{ViewID: "view-1", HasMore: true, CSRFToken: "tok"}))

	assert.Contains(t, out, `href="/post/como-utilizar-hooks/"`)
	assert.Contains(t, out, "<h2>Como utilizar Hooks</h2>")
	assert.Contains(t, out, "Joseph Oliveira")
	assert.Contains(t, out, `data-view="view-1"`)
	assert.Contains(t, out, `data-endpoint="/posts/more/"`)
	assert.Contains(t, out, "Carregar mais posts")
	assert.Contains(t, out, `<meta name="csrf-token" content="tok">`)
	assert.Contains(t, out, `lang="pt-BR"`)
}

func TestHome_WithoutMorePostsHidesButton(t *testing.T) {
	out := render(t, Home(testSite, []content.Post{{UID: "a"}}, HomeData{ViewID: "view-1", HasMore: false}))
	assert.NotContains(t, out, `id="load-more"`)

	out = render(t, Home(testSite, nil, HomeData{HasMore: true}))
	assert.NotContains(t, out, `id="load-more"`, "no button without a view session")
}

func TestPostList_EscapesAndSkipsMissingDate(t *testing.T) {
	out := render(t, PostList(testSite, []content.Post{
		{UID: "a", Data: content.PostData{Title: "<script>x</script>", Author: "Ana"}},
		{UID: "b", Data: content.PostData{Title: "B"}},
	}))
	assert.NotContains(t, out, "<script>x</script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "<html")
	assert.NotContains(t, out, `class="date"`)
	assert.Equal(t, 2, strings.Count(out, `<a class="post"`))
	assert.Less(t, strings.Index(out, `/post/a/`), strings.Index(out, `/post/b/`))
}

func TestPost(t *testing.T) {
	out := render(t, Post(testSite, content.Post{
		UID:                  "hello",
		FirstPublicationDate: date(2021, time.March, 25),
		Data:                 content.PostData{Title: "Hello", Subtitle: "World", Author: "Ana"},
	}))
	assert.Contains(t, out, "<h1>Hello</h1>")
	assert.Contains(t, out, `"@type":"BlogPosting"`)
	assert.Contains(t, out, `https://blog.example.com/post/hello/`)
	assert.Contains(t, out, "<title>Hello | Spacetraveling</title>")
}

func TestAdminDashboard(t *testing.T) {
	out := render(t, AdminDashboard(testSite, Dashboard{
		Pages: []PageStatus{
			{Key: "index", GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Key: "post/a", Stale: true},
		},
		ActiveViews: 3,
		Revalidate:  30 * time.Minute,
		Message:     "regenerated",
	}, "tok"))
	assert.Contains(t, out, "<td>index</td><td>2024-01-01T00:00:00Z</td><td>fresh</td>")
	assert.Contains(t, out, "<td>post/a</td><td>never</td><td>stale</td>")
	assert.Contains(t, out, "<strong>3</strong>")
	assert.Contains(t, out, "30m0s")
	assert.Contains(t, out, "regenerated")
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://blog.example.com", BuildURL("https://blog.example.com"))
	assert.Equal(t, "https://blog.example.com/post/a/", BuildURL("https://blog.example.com", "post", "a"))
	assert.Equal(t, "/post/a%20b/", PostPath("a b"))
}

func TestHTMLLang(t *testing.T) {
	assert.Equal(t, "pt-BR", HTMLLang("pt_BR"))
	assert.Equal(t, "en", HTMLLang(""))
	assert.Equal(t, "de", HTMLLang("de"))
}
