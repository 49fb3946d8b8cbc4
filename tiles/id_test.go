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

package tiles

import (
	"reflect"
	"testing"
)

func TestParseTileID(t *testing.T) {
	testCases := []struct {
		id      string
		zoom    int
		pos     []int
		wantErr bool
	}{
		{"0.0", 0, []int{0}, false},
		{"3.7", 3, []int{7}, false},
		{"2.1.3", 2, []int{1, 3}, false},
		{"5", 5, []int{}, false},
		{"", 0, nil, true},
		{"a.1", 0, nil, true},
		{"1.NaN", 0, nil, true},
		{"1.-2", 0, nil, true},
		{"1..2", 0, nil, true},
	}
	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			zoom, pos, err := ParseTileID(tc.id)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseTileID(%q): expected error", tc.id)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTileID(%q): %v", tc.id, err)
			}
			if zoom != tc.zoom || !reflect.DeepEqual(pos, tc.pos) {
				t.Errorf("ParseTileID(%q): got %d %v, want %d %v", tc.id, zoom, pos, tc.zoom, tc.pos)
			}
		})
	}
}

func TestParseRemoteID(t *testing.T) {
	uid, zoom, pos, err := ParseRemoteID("aBc-123.4.9")
	if err != nil {
		t.Fatalf("ParseRemoteID: %v", err)
	}
	if uid != "aBc-123" || zoom != 4 || !reflect.DeepEqual(pos, []int{9}) {
		t.Errorf("got %q %d %v, want %q %d %v", uid, zoom, pos, "aBc-123", 4, []int{9})
	}

	for _, id := range []string{"", "4", ".4.9", "uid.x.9"} {
		if _, _, _, err := ParseRemoteID(id); err == nil {
			t.Errorf("ParseRemoteID(%q): expected error", id)
		}
	}
}

func TestNewDescriptor(t *testing.T) {
	d := NewDescriptor("uid", 3, 5)
	if got, want := d.TileID, "3.5"; got != want {
		t.Errorf("TileID: got %q, want %q", got, want)
	}
	if got, want := d.RemoteID, "uid.3.5"; got != want {
		t.Errorf("RemoteID: got %q, want %q", got, want)
	}

	local := NewDescriptor("", 1, 0)
	if local.RemoteID != local.TileID {
		t.Errorf("RemoteID: got %q, want %q", local.RemoteID, local.TileID)
	}
}

func TestParentTileID(t *testing.T) {
	testCases := []struct {
		d    Descriptor
		want string
	}{
		{NewDescriptor("", 3, 5), "2.2"},
		{NewDescriptor("", 1, 1), "0.0"},
		{NewDescriptor("", 4, 6, 9), "3.3.4"},
	}
	for _, tc := range testCases {
		if got := ParentTileID(tc.d); got != tc.want {
			t.Errorf("ParentTileID(%s): got %q, want %q", tc.d.TileID, got, tc.want)
		}
	}
}
