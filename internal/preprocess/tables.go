package preprocess

import (
	"regexp"
	"strings"
)

var reColumnGap = regexp.MustCompile(`\s{2,}`)

// extractTables groups consecutive layout lines that split into two or more
// columns. A block needs at least two rows to count as a table.
func extractTables(page string) []Table {
	var (
		tables  []Table
		current Table
	)
	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}
	for _, line := range strings.Split(page, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		cells := reColumnGap.Split(trimmed, -1)
		if len(cells) < 2 {
			flush()
			continue
		}
		current = append(current, cells)
	}
	flush()
	return tables
}
