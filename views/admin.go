package views

import (
	"bytes"
	"fmt"
	"time"

	"github.com/a-h/templ"
)

// AdminLogin renders the admin password form.
func AdminLogin(site Site, showError bool, csrf string) templ.Component {
	return component(func(buf *bytes.Buffer) {
		layout(buf, site, PageMeta{Title: "Admin"}, csrf, func() {
			buf.WriteString(`<main><h1>Admin</h1>`)
			if showError {
				buf.WriteString(`<p class="error">Wrong password.</p>`)
			}
			fmt.Fprintf(buf, `<form method="post" action="/admin/login/"><input type="hidden" name="_csrf" value="%s">`, esc(csrf))
			buf.WriteString(`<input type="password" name="password" autocomplete="current-password" required><button type="submit">Log in</button></form></main>`)
		})
	})
}

// AdminDashboard renders the regeneration status of every cached page.
func AdminDashboard(site Site, d Dashboard, csrf string) templ.Component {
	return component(func(buf *bytes.Buffer) {
		layout(buf, site, PageMeta{Title: "Dashboard"}, csrf, func() {
			buf.WriteString(`<main><h1>Dashboard</h1>`)
			if d.Message != "" {
				fmt.Fprintf(buf, `<p class="message">%s</p>`, esc(d.Message))
			}
			fmt.Fprintf(buf, `<p>Active page views: <strong>%d</strong>. Pages regenerate every %s.</p>`, d.ActiveViews, esc(d.Revalidate.String()))
			buf.WriteString(`<table><thead><tr><th>Page</th><th>Generated</th><th>State</th></tr></thead><tbody>`)
			for _, p := range d.Pages {
				generated := "never"
				if !p.GeneratedAt.IsZero() {
					generated = p.GeneratedAt.UTC().Format(time.RFC3339)
				}
				state := "fresh"
				switch {
				case p.Refreshing:
					state = "regenerating"
				case p.Stale:
					state = "stale"
				}
				fmt.Fprintf(buf, `<tr><td>%s</td><td>%s</td><td>%s</td></tr>`, esc(p.Key), esc(generated), state)
			}
			buf.WriteString(`</tbody></table>`)
			fmt.Fprintf(buf, `<form method="post" action="/admin/revalidate/"><input type="hidden" name="_csrf" value="%s"><button type="submit">Regenerate now</button></form>`, esc(csrf))
			fmt.Fprintf(buf, `<form method="post" action="/admin/logout/"><input type="hidden" name="_csrf" value="%s"><button type="submit">Log out</button></form>`, esc(csrf))
			buf.WriteString(`</main>`)
		})
	})
}
