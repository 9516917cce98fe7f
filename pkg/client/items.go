package client

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/pager"
)

// extractItems returns the elements of the array at path in body, each as
// its raw JSON. An empty path selects the body itself.
func extractItems(body []byte, path string) ([]json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrInvalidPayload)
	}

	result := gjson.ParseBytes(body)
	if path != "" {
		result = result.Get(path)
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: %q is not an array", ErrInvalidPayload, path)
	}

	items := make([]json.RawMessage, 0, len(result.Array()))
	result.ForEach(func(_, value gjson.Result) bool {
		items = append(items, json.RawMessage(value.Raw))
		return true
	})
	return items, nil
}

func toItems(raw []json.RawMessage) []cache.Item {
	items := make([]cache.Item, len(raw))
	for i, r := range raw {
		items[i] = r
	}
	return items
}

func pageFromEntry(entry *cache.CacheEntry) pager.Page {
	return pager.Page{
		Items:    toItems(entry.Items),
		Metadata: entry.Metadata(),
	}
}
