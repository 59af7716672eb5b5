package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy renders `ordering` as an SQL ORDER BY clause, keeping only fields listed in `allowed`.
// Falls back to `fallback` when nothing usable remains.
func OrderBy(ordering []DBOrdering, allowed map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// ParseOrdering reads a comma separated list such as "-due_date,student_id" (leading `-` means descending).
func ParseOrdering(s string) []DBOrdering {
	var ordering []DBOrdering
	for _, f := range strings.Split(s, ",") {
		f = CleanString(f, true /* lower */)
		if f == "" {
			continue
		}
		ord := DBOrdering{Field: f, Ascending: true}
		if strings.HasPrefix(f, "-") {
			ord.Field = f[1:]
			ord.Ascending = false
		}
		ordering = append(ordering, ord)
	}
	return ordering
}
