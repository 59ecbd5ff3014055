package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// RowSet is a set of table row indices
type RowSet map[int]struct{}

// NewRowSet creates a set holding rows
func NewRowSet(rows ...int) RowSet {
	s := make(RowSet, len(rows))
	for _, r := range rows {
		s.Add(r)
	}
	return s
}

// Add inserts a row index
func (s RowSet) Add(row int) {
	s[row] = struct{}{}
}

// Has reports whether row is in the set
func (s RowSet) Has(row int) bool {
	_, ok := s[row]
	return ok
}

// Len returns the number of rows
func (s RowSet) Len() int {
	return len(s)
}

// Sorted returns the rows in ascending order
func (s RowSet) Sorted() []int {
	rows := make([]int, 0, len(s))
	for r := range s {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}

// Equal reports whether both sets hold the same rows
func (s RowSet) Equal(other RowSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Clone copies the set
func (s RowSet) Clone() RowSet {
	c := make(RowSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// MarshalJSON writes the rows as a sorted array
func (s RowSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON reads either a row array or the keyed object form
// {"12": true} used by older saved graphs.
func (s *RowSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	set := make(RowSet)

	switch {
	case bytes.Equal(trimmed, []byte("null")):
	case len(trimmed) > 0 && trimmed[0] == '[':
		var rows []int
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return err
		}
		for _, r := range rows {
			set.Add(r)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return err
		}
		for key := range keyed {
			r, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("invalid row index %q: %w", key, err)
			}
			set.Add(r)
		}
	default:
		return fmt.Errorf("row set must be an array or object, got %s", trimmed)
	}

	*s = set
	return nil
}
