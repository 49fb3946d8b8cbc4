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

// Package chrominfo converts between absolute genome coordinates and
// (chromosome, offset) pairs using a table of chromosome lengths.
package chrominfo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/pileup/genomics"
)

var (
	errEmptyTable = errors.New("empty chromosome table")
)

// Chromosome is a single entry of the chromosome table.
type Chromosome struct {
	Name   string
	Length int64
	// Start is the absolute coordinate of the first base of the chromosome,
	// which is the sum of the lengths of all preceding chromosomes.
	Start int64
	Index int
}

// End returns the absolute coordinate one past the last base.
func (c Chromosome) End() int64 {
	return c.Start + c.Length
}

// Position is a location relative to a chromosome.
type Position struct {
	Name   string
	Offset int64
	// Overflow is non-zero when the absolute coordinate fell outside the
	// genome.  It is negative before the first chromosome and positive past
	// the end of the last one.
	Overflow int64
	Index    int
}

// Info is a cumulative chromosome table.  The zero value is an empty table.
type Info struct {
	chromosomes []Chromosome
	byName      map[string]int
	total       int64
}

// New builds an Info from names and lengths given in genome order.
func New(names []string, lengths []int64) (*Info, error) {
	if len(names) != len(lengths) {
		return nil, fmt.Errorf("mismatched table: %d names, %d lengths", len(names), len(lengths))
	}
	info := &Info{byName: make(map[string]int, len(names))}
	for i, name := range names {
		if lengths[i] < 0 {
			return nil, fmt.Errorf("chromosome %q: negative length %d", name, lengths[i])
		}
		if _, ok := info.byName[name]; ok {
			return nil, fmt.Errorf("duplicate chromosome %q", name)
		}
		info.byName[name] = i
		info.chromosomes = append(info.chromosomes, Chromosome{
			Name:   name,
			Length: lengths[i],
			Start:  info.total,
			Index:  i,
		})
		info.total += lengths[i]
	}
	return info, nil
}

// Parse reads a chrom-sizes file: one "name<TAB>length" row per chromosome.
// Blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader) (*Info, error) {
	var (
		names   []string
		lengths []int64
	)
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields, got %d", line, len(fields))
		}
		n, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing length: %v", line, err)
		}
		names = append(names, fields[0])
		lengths = append(lengths, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading chrom sizes: %v", err)
	}
	return New(names, lengths)
}

// FromHeader builds an Info from the references listed in a SAM/BAM header.
func FromHeader(header *sam.Header) (*Info, error) {
	var (
		names   []string
		lengths []int64
	)
	for _, ref := range header.Refs() {
		names = append(names, ref.Name())
		lengths = append(lengths, int64(ref.Len()))
	}
	return New(names, lengths)
}

// TotalLength returns the sum of all chromosome lengths.
func (info *Info) TotalLength() int64 {
	return info.total
}

// Chromosomes returns the table in genome order.
func (info *Info) Chromosomes() []Chromosome {
	return info.chromosomes
}

// Chromosome returns the named chromosome.
func (info *Info) Chromosome(name string) (Chromosome, bool) {
	i, ok := info.byName[name]
	if !ok {
		return Chromosome{}, false
	}
	return info.chromosomes[i], true
}

// ChromosomeToAbsolute returns the absolute coordinate of offset within the
// named chromosome.
func (info *Info) ChromosomeToAbsolute(name string, offset int64) (int64, error) {
	c, ok := info.Chromosome(name)
	if !ok {
		return 0, fmt.Errorf("unknown chromosome %q", name)
	}
	return c.Start + offset, nil
}

// AbsoluteToChromosome locates an absolute coordinate.  Coordinates before
// the genome clamp to offset 1 of the first chromosome and coordinates past
// the end clamp to the last base of the last chromosome; in both cases the
// distance is reported in Overflow.  A coordinate that falls exactly on a
// chromosome start is reported as the end of the preceding chromosome.
func (info *Info) AbsoluteToChromosome(absolute int64) (Position, error) {
	n := len(info.chromosomes)
	if n == 0 {
		return Position{}, errEmptyTable
	}

	i := sort.Search(n, func(i int) bool {
		return info.chromosomes[i].Start >= absolute
	})
	if i > 0 {
		i--
	}
	if i >= n {
		i = n - 1
	}
	c := info.chromosomes[i]

	pos := Position{Name: c.Name, Offset: absolute - c.Start, Index: i}
	if pos.Offset < 0 {
		pos.Overflow = pos.Offset - 1
		pos.Offset = 1
	}
	if last := info.chromosomes[n-1]; i == n-1 && pos.Offset > last.Length {
		pos.Overflow = pos.Offset - last.Length
		pos.Offset = last.Length
	}
	return pos, nil
}

// Split breaks the absolute range [from, to) into per-chromosome regions,
// starting with the chromosome that contains from.  Parts of the range that
// lie outside the genome are dropped.
func (info *Info) Split(from, to int64) []genomics.Region {
	var regions []genomics.Region
	for _, c := range info.chromosomes {
		if from >= to {
			break
		}
		if from < c.Start || from >= c.End() {
			continue
		}
		region := genomics.Region{ReferenceID: c.Index, Name: c.Name, Start: from - c.Start}
		if to > c.End() {
			region.End = c.Length
			from = c.End()
		} else {
			region.End = to - c.Start
			from = to
		}
		regions = append(regions, region)
	}
	return regions
}
