// Package components holds the markup writer and the building blocks
// shared by the web UI pages.
package components

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"
)

// HTML writes markup and remembers the first write error.
type HTML struct {
	ctx context.Context
	w   io.Writer
	err error
}

// New returns a component that writes its markup through fn.
func New(fn func(h *HTML)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &HTML{ctx: ctx, w: w}
		fn(h)
		return h.err
	})
}

// Raw writes parts unescaped.
func (h *HTML) Raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

// Text writes s HTML-escaped.
func (h *HTML) Text(s string) {
	h.Raw(templ.EscapeString(s))
}

func (h *HTML) Textf(format string, args ...any) {
	h.Text(fmt.Sprintf(format, args...))
}

// Attr writes ` name="value"` with value escaped.
func (h *HTML) Attr(name, value string) {
	h.Raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

// Render writes c inline.
func (h *HTML) Render(c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(h.ctx, h.w)
	}
}

// CSRF writes the hidden CSRF token field.
func (h *HTML) CSRF(token string) {
	h.Raw(`<input type="hidden"`)
	h.Attr("name", CSRFFieldName)
	h.Attr("value", token)
	h.Raw(">")
}

func (h *HTML) Hidden(name, value string) {
	h.Raw(`<input type="hidden"`)
	h.Attr("name", name)
	h.Attr("value", value)
	h.Raw(">")
}

// Input writes a labelled text input with its validation message.
func (h *HTML) Input(label, typ, name, value, errMsg string) {
	h.Raw(`<label class="field">`)
	h.Text(label)
	h.Raw(`<input`)
	h.Attr("type", typ)
	h.Attr("name", name)
	h.Attr("value", value)
	h.Raw(">")
	h.FieldError(errMsg)
	h.Raw(`</label>`)
}

func (h *HTML) FieldError(msg string) {
	if msg != "" {
		h.Raw(`<span class="error">`)
		h.Text(msg)
		h.Raw(`</span>`)
	}
}

func (h *HTML) Option(value, label string, selected bool) {
	h.Raw(`<option`)
	h.Attr("value", value)
	if selected {
		h.Raw(" selected")
	}
	h.Raw(">")
	h.Text(label)
	h.Raw(`</option>`)
}

func (h *HTML) Checkbox(name, value string, checked bool) {
	h.Raw(`<input type="checkbox"`)
	h.Attr("name", name)
	h.Attr("value", value)
	if checked {
		h.Raw(" checked")
	}
	h.Raw(">")
}

// PostButton writes a single-button form posting to action.
func (h *HTML) PostButton(action, label, token, class string) {
	h.Raw(`<form method="post" class="inline"`)
	h.Attr("action", action)
	h.Raw(">")
	h.CSRF(token)
	h.Raw(`<button type="submit"`)
	h.Attr("class", class)
	h.Raw(">")
	h.Text(label)
	h.Raw(`</button></form>`)
}

func (h *HTML) Link(href, label string) {
	h.Raw(`<a`)
	h.Attr("href", href)
	h.Raw(">")
	h.Text(label)
	h.Raw(`</a>`)
}

// Pager writes previous/next links keeping the other query parameters.
func (h *HTML) Pager(path string, q url.Values, page, totalPages int) {
	if totalPages <= 1 {
		return
	}
	h.Raw(`<nav class="pager">`)
	if page > 1 {
		h.Link(pageURL(path, q, page-1), "Previous")
	}
	h.Textf(" Page %d of %d ", page, totalPages)
	if page < totalPages {
		h.Link(pageURL(path, q, page+1), "Next")
	}
	h.Raw(`</nav>`)
}

func pageURL(path string, q url.Values, page int) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = v
	}
	next.Set("page", strconv.Itoa(page))
	return path + "?" + next.Encode()
}

// FormatTime renders t in local time, or "never" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func FormatInt(v int) string {
	return strconv.Itoa(v)
}

func FormatCost(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}
