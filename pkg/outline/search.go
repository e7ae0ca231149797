package outline

import "strings"

// Search returns the indexes of rows whose label contains query, ignoring
// case. An empty query matches nothing.
func Search(rows []Row, query string) []int {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var out []int

	for i, row := range rows {
		if strings.Contains(strings.ToLower(row.Label), query) {
			out = append(out, i)
		}
	}

	return out
}

// NextMatch returns the first match after index from, wrapping around.
func NextMatch(matches []int, from int) (int, bool) {
	if len(matches) == 0 {
		return 0, false
	}

	for _, i := range matches {
		if i > from {
			return i, true
		}
	}

	return matches[0], true
}
