// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package layout assigns overlapping genomic segments to non-overlapping
// display rows ("pileup" layout).
//
// Layout is incremental: segments that already had a row in the previous
// assignment keep it, and only segments seen for the first time are placed.
// This keeps rows stable while the view pans across a changing set of tiles.
package layout

import (
	"fmt"
	"sort"

	"github.com/googlegenomics/pileup/genomics"
)

// DefaultPadding is the minimum gap, in base pairs, between two segments
// sharing a row.
const DefaultPadding = 5

// Row is a lane of segments sorted by From.  Adjacent segments a, b satisfy
// a.To + padding <= b.From.
type Row []genomics.Segment

// Layout assigns segments to rows, reusing the row of every segment that is
// present in previous.  Segments in previous that are not in segments are
// dropped.  Neither input is modified.
//
// If the same ID occurs more than once in segments the last occurrence is
// placed.  A segment that keeps its row is stored with its latest bounds; if
// those no longer fit in the row it is placed again like a new segment.
func Layout(segments []genomics.Segment, previous []Row, padding int64) []Row {
	segments = genomics.Merge(segments)
	if len(segments) == 0 {
		return []Row{}
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].From < segments[j].From
	})

	current := make(map[string]genomics.Segment, len(segments))
	for _, s := range segments {
		current[s.ID] = s
	}

	retained := make(map[string]bool)
	rows := make([]Row, 0, len(previous))
	for _, row := range previous {
		var carried Row
		for _, s := range row {
			if latest, ok := current[s.ID]; ok && !retained[s.ID] {
				carried = append(carried, latest)
				retained[s.ID] = true
			}
		}
		sort.SliceStable(carried, func(i, j int) bool {
			return carried[i].From < carried[j].From
		})

		kept := make(Row, 0, len(carried))
		for _, s := range carried {
			if len(kept) > 0 && overlaps(kept[len(kept)-1], s, padding) {
				delete(retained, s.ID)
				continue
			}
			kept = append(kept, s)
		}
		rows = append(rows, kept)
	}

	for _, s := range segments {
		if retained[s.ID] {
			continue
		}
		placed := false
		for i := range rows {
			if rows[i].insert(s, padding) {
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, Row{s})
		}
	}

	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}

// insert adds s at its sorted position if it does not overlap its neighbours.
func (row *Row) insert(s genomics.Segment, padding int64) bool {
	r := *row
	i := sort.Search(len(r), func(i int) bool {
		return r[i].From > s.From
	})
	if i > 0 && overlaps(r[i-1], s, padding) {
		return false
	}
	if i < len(r) && overlaps(s, r[i], padding) {
		return false
	}
	r = append(r, genomics.Segment{})
	copy(r[i+1:], r[i:])
	r[i] = s
	*row = r
	return true
}

// overlaps reports whether a, which starts no later than b, is too close to
// b to share a row.
func overlaps(a, b genomics.Segment, padding int64) bool {
	return a.To+padding > b.From
}

// Index maps every segment ID in rows to its row number.
func Index(rows []Row) map[string]int {
	index := make(map[string]int)
	for i, row := range rows {
		for _, s := range row {
			index[s.ID] = i
		}
	}
	return index
}

// Count returns the number of segments in rows.
func Count(rows []Row) int {
	var n int
	for _, row := range rows {
		n += len(row)
	}
	return n
}

// Validate checks that every row is sorted and free of overlaps and that no
// segment ID appears twice.
func Validate(rows []Row, padding int64) error {
	seen := make(map[string]int)
	for i, row := range rows {
		for j, s := range row {
			if prev, ok := seen[s.ID]; ok {
				return fmt.Errorf("segment %s in rows %d and %d", s.ID, prev, i)
			}
			seen[s.ID] = i
			if j == 0 {
				continue
			}
			if p := row[j-1]; p.From > s.From || overlaps(p, s, padding) {
				return fmt.Errorf("row %d: segments %s [%d,%d] and %s [%d,%d] overlap", i, p.ID, p.From, p.To, s.ID, s.From, s.To)
			}
		}
	}
	return nil
}
