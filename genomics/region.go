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

// Package genomics contains definitions related to Genomic data.
package genomics

import "fmt"

// Region defines a region of genomic interest on a single reference.
type Region struct {
	// ReferenceID is the index of the reference in its chromosome table.
	ReferenceID int
	// Name is the reference (chromosome) name.
	Name string
	// Start and End specify the half open range [Start, End) in base pairs
	// relative to the start of the reference.
	Start, End int64
}

// Len returns the number of base pairs covered by region.
func (region Region) Len() int64 {
	return region.End - region.Start
}

func (region Region) String() string {
	return fmt.Sprintf("[region:%s(%d), start:%d, end:%d]", region.Name, region.ReferenceID, region.Start, region.End)
}
