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

package genomics

// Strand is the orientation of a read relative to the reference.
type Strand int8

// The known strand values.  Unknown is the zero value.
const (
	Unknown Strand = 0
	Forward Strand = 1
	Reverse Strand = -1
)

func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "."
}

// Segment is a genomic interval with a stable identity, typically a single
// sequencing read.  From and To are absolute genome coordinates with
// From <= To.  Segments are treated as immutable once received.
type Segment struct {
	ID   string `json:"id"`
	From int64  `json:"from"`
	To   int64  `json:"to"`

	// Cigar is the SAM CIGAR string of the alignment, if known.
	Cigar string `json:"cigar,omitempty"`
	// MD is the mismatch descriptor (SAM MD tag) of the alignment, if known.
	MD     string `json:"md,omitempty"`
	Strand Strand `json:"strand,omitempty"`
}

// Len returns the number of base pairs spanned by the segment.
func (s Segment) Len() int64 {
	return s.To - s.From
}

// Merge flattens lists into a single list with one entry per segment ID.  When
// an ID occurs more than once the last occurrence wins, but the entry keeps
// the position where the ID was first seen.
func Merge(lists ...[]Segment) []Segment {
	var (
		merged []Segment
		index  = make(map[string]int)
	)
	for _, list := range lists {
		for _, segment := range list {
			if i, ok := index[segment.ID]; ok {
				merged[i] = segment
				continue
			}
			index[segment.ID] = len(merged)
			merged = append(merged, segment)
		}
	}
	return merged
}
