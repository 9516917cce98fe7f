package window

import (
	"fmt"
	"strconv"
)

// EntryKind identifies the role of a nav bar entry.
type EntryKind string

const (
	KindFirst    EntryKind = "first"
	KindPrevious EntryKind = "previous"
	KindPage     EntryKind = "page"
	KindEllipsis EntryKind = "ellipsis"
	KindNext     EntryKind = "next"
	KindLast     EntryKind = "last"
)

// Entry is one element of a pagination bar.
// PageNumber is 0 for ellipsis entries.
type Entry struct {
	Kind       EntryKind `json:"kind"`
	Label      string    `json:"label"`
	Title      string    `json:"title,omitempty"`
	PageNumber int       `json:"page_number"`
	IsEllipsis bool      `json:"is_ellipsis"`
	IsActive   bool      `json:"is_active"`
}

// NavBar describes a pagination bar for rendering.
// The zero value is a suppressed bar.
type NavBar struct {
	Entries []Entry `json:"entries"`
	Current int     `json:"current"`
	Total   int     `json:"total"`
}

// Empty reports whether there is nothing to render.
func (n NavBar) Empty() bool {
	return len(n.Entries) == 0
}

// Pages returns the page numbers of the page-link entries.
func (n NavBar) Pages() []int {
	var pages []int
	for _, e := range n.Entries {
		if e.Kind == KindPage {
			pages = append(pages, e.PageNumber)
		}
	}
	return pages
}

// Build plans the window for currentPage and returns its nav bar.
// A single page result set yields an empty bar.
func Build(totalPages, currentPage int) NavBar {
	if totalPages <= 1 {
		return NavBar{}
	}
	return Plan(totalPages, currentPage).NavBar()
}

// NavBar lays out the window as nav bar entries:
// first, previous and the leading ellipsis appear only away from page 1,
// the trailing ellipsis, next and last only before the final page.
func (w Window) NavBar() NavBar {
	entries := make([]Entry, 0, len(w.Pages)+6)

	if w.ShowFirstPrev {
		entries = append(entries,
			control(KindFirst, "<< first", "first page", 1),
			control(KindPrevious, "< previous", "previous page", w.Current-1),
		)
		if w.LeadingEllipsis {
			entries = append(entries, ellipsis())
		}
	}

	for _, p := range w.Pages {
		entries = append(entries, Entry{
			Kind:       KindPage,
			Label:      strconv.Itoa(p),
			Title:      fmt.Sprintf("Go to page %d", p),
			PageNumber: p,
			IsActive:   p == w.Current,
		})
	}

	if w.ShowNextLast {
		if w.TrailingEllipsis {
			entries = append(entries, ellipsis())
		}
		entries = append(entries,
			control(KindNext, "next >", "next page", w.Current+1),
			control(KindLast, "last >>", "last page", w.Total),
		)
	}

	return NavBar{
		Entries: entries,
		Current: w.Current,
		Total:   w.Total,
	}
}

func control(kind EntryKind, label, title string, page int) Entry {
	return Entry{
		Kind:       kind,
		Label:      label,
		Title:      "Go to " + title,
		PageNumber: page,
	}
}

func ellipsis() Entry {
	return Entry{Kind: KindEllipsis, Label: "...", IsEllipsis: true}
}
