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

package render

// Color codes written for every vertex.  A consumer resolves them against
// Palette, typically through a small texture.
const (
	ColorSegment = iota
	ColorA
	ColorC
	ColorG
	ColorT
	ColorSoftClip
	ColorUnknown

	numColors
)

// Palette holds the RGBA value, in [0, 1], of every color code.
var Palette = [numColors][4]float32{
	ColorSegment:  {0.75, 0.75, 0.75, 1},
	ColorA:        {0, 0, 1, 1},
	ColorC:        {1, 0, 0, 1},
	ColorG:        {0, 1, 0, 1},
	ColorT:        {1, 1, 0, 1},
	ColorSoftClip: {1, 0.41, 0.71, 1},
	ColorUnknown:  {0, 0, 0, 1},
}

// BaseColor returns the color code for a substituted base.
func BaseColor(base byte) int {
	switch base {
	case 'A', 'a':
		return ColorA
	case 'C', 'c':
		return ColorC
	case 'G', 'g':
		return ColorG
	case 'T', 't':
		return ColorT
	case 'S':
		return ColorSoftClip
	}
	return ColorUnknown
}

// RGBA resolves a color code against Palette.  Unknown codes resolve to the
// ColorUnknown entry.
func RGBA(code float32) [4]float32 {
	i := int(code)
	if i < 0 || i >= numColors || float32(i) != code {
		return Palette[ColorUnknown]
	}
	return Palette[i]
}
