package cache

import (
	"fmt"
	"strings"
)

// Item is an opaque handle to one rendered item (a table row, a listing card, ...).
// The cache never inspects items beyond the optional Kinded interface.
type Item any

// Kind describes the role an item plays in a rendered page.
type Kind int

const (
	// KindUnspecified is reported for items that do not implement Kinded.
	KindUnspecified Kind = iota
	KindRow
	KindHeading
	KindListing
)

// Kinded is implemented by items that declare their role.
type Kinded interface {
	ItemKind() Kind
}

// KindOf returns the declared kind of item, or KindUnspecified.
func KindOf(item Item) Kind {
	if k, ok := item.(Kinded); ok {
		return k.ItemKind()
	}
	return KindUnspecified
}

// Type selects how a target's live render is captured and composed.
type Type int

const (
	TypeGeneric Type = iota
	TypeTabular
	TypeListing
)

// String returns the configuration name of the type.
func (t Type) String() string {
	switch t {
	case TypeTabular:
		return "tabular"
	case TypeListing:
		return "listing"
	default:
		return "generic"
	}
}

// ParseType parses a cache type name.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic":
		return TypeGeneric, nil
	case "tabular", "table":
		return TypeTabular, nil
	case "listing", "list":
		return TypeListing, nil
	default:
		return TypeGeneric, fmt.Errorf("unknown cache type %q", s)
	}
}

// Policy is the capture/render capability pair of a cache type.
type Policy interface {
	// Capture extracts the cacheable items from whatever is currently rendered.
	// It returns false when the type does not capture live renders.
	Capture(rendered []Item) ([]Item, bool)

	// Compose returns the items to render for a page.
	Compose(heading Item, hasHeading bool, items []Item) []Item

	// SupportsHeading reports whether the type keeps a persistent heading.
	SupportsHeading() bool
}

// PolicyFor returns the policy of a cache type.
func PolicyFor(t Type) Policy {
	switch t {
	case TypeTabular:
		return tabularPolicy{}
	case TypeListing:
		return listingPolicy{}
	default:
		return genericPolicy{}
	}
}

// tabularPolicy keeps row-like items and renders the heading on top of every page.
type tabularPolicy struct{}

func (tabularPolicy) Capture(rendered []Item) ([]Item, bool) {
	return filter(rendered, func(k Kind) bool {
		return k == KindRow || k == KindUnspecified
	}), true
}

func (tabularPolicy) Compose(heading Item, hasHeading bool, items []Item) []Item {
	out := make([]Item, 0, len(items)+1)
	if hasHeading {
		out = append(out, heading)
	}
	return append(out, items...)
}

func (tabularPolicy) SupportsHeading() bool { return true }

// listingPolicy keeps listing-like children only.
type listingPolicy struct{}

func (listingPolicy) Capture(rendered []Item) ([]Item, bool) {
	return filter(rendered, func(k Kind) bool {
		return k == KindListing || k == KindUnspecified
	}), true
}

func (listingPolicy) Compose(_ Item, _ bool, items []Item) []Item {
	return append([]Item(nil), items...)
}

func (listingPolicy) SupportsHeading() bool { return false }

// genericPolicy never captures; pages only enter the cache through Put.
type genericPolicy struct{}

func (genericPolicy) Capture([]Item) ([]Item, bool) { return nil, false }

func (genericPolicy) Compose(_ Item, _ bool, items []Item) []Item {
	return append([]Item(nil), items...)
}

func (genericPolicy) SupportsHeading() bool { return false }

func filter(items []Item, keep func(Kind) bool) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if keep(KindOf(item)) {
			out = append(out, item)
		}
	}
	return out
}
