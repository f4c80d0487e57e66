package platform

// CompareIDs orders record identifiers by length first, then
// lexicographically, so numeric string IDs sort numerically ("99" < "100").
// It returns -1, 0 or 1.
func CompareIDs(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IDAfter reports whether id sorts strictly after cursor. An empty cursor
// admits every id.
func IDAfter(id, cursor string) bool {
	return cursor == "" || CompareIDs(id, cursor) > 0
}
