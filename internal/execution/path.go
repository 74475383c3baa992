package execution

import (
	"strconv"
	"strings"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// ResolvePath applies a restricted accessor path to decoded output data.
// Paths use dot notation for object fields and [n] for array indexes,
// as in "body.items[0].id". An empty path selects the whole value.
// Missing fields and out-of-range indexes fail
// VARIABLE_RESOLUTION_FAILED.
func ResolvePath(root any, path string) (any, error) {
	if path == "" {
		return root, nil
	}
	current := root
	rest := path
	for rest != "" {
		var segment string
		if i := strings.IndexAny(rest, ".["); i == 0 && rest[0] == '.' {
			rest = rest[1:]
			continue
		} else if i == 0 { // '['
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "unterminated index in path %q", path)
			}
			index, err := strconv.Atoi(rest[1:end])
			if err != nil {
				return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "non-numeric index %q in path %q", rest[1:end], path)
			}
			arr, ok := current.([]any)
			if !ok {
				return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "cannot index %T in path %q", current, path)
			}
			if index < 0 || index >= len(arr) {
				return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "index %d out of bounds (len %d) in path %q", index, len(arr), path)
			}
			current = arr[index]
			rest = rest[end+1:]
			continue
		} else if i > 0 {
			segment, rest = rest[:i], rest[i:]
		} else {
			segment, rest = rest, ""
		}

		obj, ok := current.(map[string]any)
		if !ok {
			return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "cannot access field %q on %T in path %q", segment, current, path)
		}
		field, ok := obj[segment]
		if !ok {
			return nil, types.NewErrorf(types.VARIABLE_RESOLUTION_FAILED, "missing field %q in path %q", segment, path)
		}
		current = field
	}
	return current, nil
}
