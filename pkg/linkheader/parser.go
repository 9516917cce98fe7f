package linkheader

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Relation names consumed by the pager.
const (
	RelFirst = "first"
	RelPrev  = "prev"
	RelNext  = "next"
	RelLast  = "last"
)

// Query parameters read from relation URLs.
const (
	ParamPage     = "page"
	ParamPageSize = "pagesize"
	// ParamSize is the page size parameter used by servers that do not speak "pagesize".
	ParamSize = "size"
)

// Links maps a relation name to its URL.
// A Links value is built once per response and must not be modified afterwards.
type Links map[string]string

// Metadata is the pagination metadata derived from a Links set.
// Zero values mean the response carried no pagination metadata.
type Metadata struct {
	LastPage int `json:"last_page"`
	PageSize int `json:"page_size"`
}

// IsZero reports whether no pagination metadata is available.
func (m Metadata) IsZero() bool {
	return m.LastPage == 0 && m.PageSize == 0
}

// Parse parses a Link header value into a Links set.
// Segments without a ";" separator are skipped. An empty header yields an empty set.
func Parse(header string) Links {
	links := make(Links, 4)
	if strings.TrimSpace(header) == "" {
		return links
	}

	for _, item := range strings.Split(header, ",") {
		// servers that HTML-escape the header send &amp; between query params
		item = strings.ReplaceAll(item, "&amp;", "&")

		sections := strings.Split(item, ";")
		if len(sections) < 2 {
			continue
		}

		link := trimURL(sections[0])
		name := trimRel(sections[1])
		if name == "" {
			continue
		}
		links[name] = link
	}

	return links
}

// FromHeader parses every Link value present in h.
func FromHeader(h http.Header) Links {
	if h == nil {
		return make(Links)
	}
	return Parse(strings.Join(h.Values("Link"), ","))
}

// Rel returns the URL of the named relation.
func (l Links) Rel(name string) (string, bool) {
	link, ok := l[name]
	return link, ok
}

// Len returns the number of relations in the set.
func (l Links) Len() int {
	return len(l)
}

// LastPage returns the page number of the "last" relation, or 0 when absent.
func (l Links) LastPage() int {
	last, ok := l[RelLast]
	if !ok {
		return 0
	}
	return paramInt(last, ParamPage)
}

// PageSize returns the page size advertised by the "first" relation.
// It reads "pagesize" and falls back to "size" only when "pagesize" is absent.
// Returns 0 when the chosen parameter is missing or not a non-negative integer.
func (l Links) PageSize() int {
	first, ok := l[RelFirst]
	if !ok {
		return 0
	}
	if _, present := ExtractParam(first, ParamPageSize); present {
		return paramInt(first, ParamPageSize)
	}
	return paramInt(first, ParamSize)
}

// Metadata returns the derived pagination metadata.
func (l Links) Metadata() Metadata {
	return Metadata{
		LastPage: l.LastPage(),
		PageSize: l.PageSize(),
	}
}

// ExtractParam returns the first value of the named query parameter in rawURL.
// Keys and values are URL-decoded before matching.
func ExtractParam(rawURL, name string) (string, bool) {
	if rawURL == "" || name == "" {
		return "", false
	}

	idx := strings.LastIndex(rawURL, "?")
	if idx < 0 {
		return "", false
	}
	query := rawURL[idx+1:]
	if hash := strings.Index(query, "#"); hash >= 0 {
		query = query[:hash]
	}

	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if decode(key) == name {
			return decode(value), true
		}
	}

	return "", false
}

func paramInt(rawURL, name string) int {
	value, ok := ExtractParam(rawURL, name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// decode falls back to the raw text when it is not valid percent-encoding.
func decode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

func trimURL(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "<"); start >= 0 {
		if end := strings.LastIndex(s, ">"); end > start {
			s = s[start+1 : end]
		}
	}
	return strings.TrimSpace(s)
}

func trimRel(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "rel="); ok {
		s = strings.Trim(strings.TrimSpace(rest), `"`)
	}
	return strings.TrimSpace(s)
}
