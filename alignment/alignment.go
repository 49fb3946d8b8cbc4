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

// Package alignment decodes per-read alignment annotations (MD mismatch
// descriptors and CIGAR strings) into substitution records.
package alignment

import (
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/pileup/genomics"
)

// SoftClip is the Base value used for soft-clipped substitutions.
const SoftClip = 'S'

// Substitution describes a run of read bases that differ from the reference.
// Pos is 1-based relative to the first aligned base of the read, so the run
// starts at absolute coordinate segment.From + Pos - 1.
type Substitution struct {
	Pos    int64
	Base   byte
	Length int64
}

// ParseMD decodes an MD tag into single-base substitutions.  Runs of digits
// count matching bases; every other character is a substituted reference
// base.  Bases following a '^' are deleted from the read: they advance the
// position but are not reported.
func ParseMD(md string) ([]Substitution, error) {
	var (
		subs     []Substitution
		pos      = int64(1)
		matched  int64
		deletion bool
	)
	for i := 0; i < len(md); i++ {
		c := md[i]
		switch {
		case c >= '0' && c <= '9':
			matched = matched*10 + int64(c-'0')
			deletion = false
		case c == '^':
			pos += matched
			matched = 0
			deletion = true
		case isBase(c):
			pos += matched
			matched = 0
			if !deletion {
				subs = append(subs, Substitution{Pos: pos, Base: c, Length: 1})
			}
			pos++
		default:
			return nil, fmt.Errorf("invalid MD character %q at %d", c, i)
		}
	}
	return subs, nil
}

func isBase(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// SoftClips returns the soft-clipped run at the start of the alignment or,
// failing that, at the end.  length is the aligned length of the read.
func SoftClips(cigar string, length int64) ([]Substitution, error) {
	if cigar == "" || cigar == "*" {
		return nil, nil
	}
	ops, err := sam.ParseCigar([]byte(cigar))
	if err != nil {
		return nil, fmt.Errorf("parsing cigar %q: %v", cigar, err)
	}
	if len(ops) == 0 {
		return nil, nil
	}
	if first := ops[0]; first.Type() == sam.CigarSoftClipped {
		n := int64(first.Len())
		return []Substitution{{Pos: -n + 1, Base: SoftClip, Length: n}}, nil
	}
	if last := ops[len(ops)-1]; last.Type() == sam.CigarSoftClipped {
		return []Substitution{{Pos: length + 1, Base: SoftClip, Length: int64(last.Len())}}, nil
	}
	return nil, nil
}

// Decode returns every substitution that should be drawn for segment: the
// mismatches from its MD tag followed by any soft clip from its CIGAR.
func Decode(segment genomics.Segment) ([]Substitution, error) {
	var subs []Substitution
	if segment.MD != "" {
		md, err := ParseMD(segment.MD)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %v", segment.ID, err)
		}
		subs = md
	}
	clips, err := SoftClips(segment.Cigar, segment.Len())
	if err != nil {
		return nil, fmt.Errorf("segment %s: %v", segment.ID, err)
	}
	return append(subs, clips...), nil
}
