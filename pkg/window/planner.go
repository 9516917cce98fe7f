// Package window plans the page numbers shown in a pagination bar.
//
// At most MaxVisiblePages page links are shown. Longer ranges collapse into a
// window around the current page with ellipses on the truncated sides.
package window

// MaxVisiblePages is the width of the page window.
const MaxVisiblePages = 9

// edgeSpan is how far the current page sits from the window edges when centered.
const edgeSpan = MaxVisiblePages / 2

// Window is the planned set of page links for one position in a result set.
type Window struct {
	// Pages are the page numbers rendered as links, ascending.
	Pages []int

	LeadingEllipsis  bool
	TrailingEllipsis bool

	// ShowFirstPrev is true unless the current page is the first one.
	ShowFirstPrev bool
	// ShowNextLast is true while pages remain after the current one.
	ShowNextLast bool

	Current int
	Total   int
}

// Plan computes the window for currentPage out of totalPages.
// totalPages is raised to 1 and currentPage clamped into [1, totalPages].
func Plan(totalPages, currentPage int) Window {
	if totalPages < 1 {
		totalPages = 1
	}
	currentPage = clamp(currentPage, 1, totalPages)

	minPage, maxPage := 1, totalPages
	if totalPages > MaxVisiblePages {
		switch {
		case currentPage <= edgeSpan+1:
			minPage, maxPage = 1, MaxVisiblePages
		case currentPage >= totalPages-edgeSpan:
			minPage, maxPage = totalPages-MaxVisiblePages+1, totalPages
		default:
			minPage, maxPage = currentPage-edgeSpan, currentPage+edgeSpan
		}
	}

	pages := make([]int, 0, maxPage-minPage+1)
	for p := minPage; p <= maxPage; p++ {
		pages = append(pages, p)
	}

	return Window{
		Pages:            pages,
		LeadingEllipsis:  minPage > 1,
		TrailingEllipsis: maxPage < totalPages,
		ShowFirstPrev:    currentPage != 1,
		ShowNextLast:     currentPage < totalPages,
		Current:          currentPage,
		Total:            totalPages,
	}
}

// TotalPages returns ceil(totalItems / itemsPerPage), never less than 1.
func TotalPages(totalItems, itemsPerPage int) int {
	if itemsPerPage <= 0 || totalItems <= 0 {
		return 1
	}
	return (totalItems + itemsPerPage - 1) / itemsPerPage
}

// Contains reports whether page is one of the window's links.
func (w Window) Contains(page int) bool {
	if len(w.Pages) == 0 {
		return false
	}
	return page >= w.Pages[0] && page <= w.Pages[len(w.Pages)-1]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
