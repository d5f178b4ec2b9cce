package normalizer

import (
	"sort"
	"strings"
)

// maxFlattenNodes bounds the walk over pathological payloads.
const maxFlattenNodes = 10000

// flatten walks v breadth-first and returns every object it contains,
// decoding strings that hold embedded JSON along the way. Object keys are
// visited in sorted order so the result is deterministic.
func flatten(v any) []map[string]any {
	var objects []map[string]any
	queue := []any{v}
	visited := 0

	for len(queue) > 0 && visited < maxFlattenNodes {
		current := queue[0]
		queue = queue[1:]
		visited++

		switch t := current.(type) {
		case map[string]any:
			objects = append(objects, t)
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				queue = append(queue, t[k])
			}
		case []any:
			queue = append(queue, t...)
		case string:
			if parsed, ok := decodeJSON(strings.TrimSpace(t)); ok {
				queue = append(queue, parsed)
			}
		}
	}
	return objects
}
