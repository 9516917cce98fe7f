// Package linkheader parses pagination metadata from HTTP Link headers.
//
// Paginated APIs advertise neighbouring pages through a header of the form:
//
//	Link: <https://api.example.org/forums/posts?page=1&pagesize=20>; rel="first",
//	      <https://api.example.org/forums/posts?page=7&pagesize=20>; rel="last"
//
// Parse turns the header into a Links set keyed by relation name. The derived
// accessors LastPage and PageSize read the page count and page size from the
// "last" and "first" relations:
//
//	links := linkheader.FromHeader(resp.Header)
//	meta := links.Metadata() // {LastPage: 7, PageSize: 20}
//
// Parsing never fails. Malformed segments are skipped, and a missing header
// yields an empty set whose metadata is zero, which callers treat as a
// single page of results.
package linkheader
