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

package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// FileClient is Client for objects stored as files below Root. Buckets are
// directories.
type FileClient struct {
	Root string
}

// NewFileFactory returns a Factory that always serves from root.
func NewFileFactory(root string) Factory {
	return func(*http.Request) (Client, error) {
		return FileClient{Root: root}, nil
	}
}

// NewObjectHandle returns a handle to the file for object. Paths cannot
// escape Root.
func (c FileClient) NewObjectHandle(bucket, object string) ObjectHandle {
	rel := filepath.Clean(string(filepath.Separator) + filepath.Join(bucket, filepath.FromSlash(object)))
	return fileObjectHandle{path: filepath.Join(c.Root, rel)}
}

type fileObjectHandle struct {
	path string
}

type fileRangeReader struct {
	io.Reader
	io.Closer
}

func (h fileObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil, ErrObjectNotExist
	} else if err != nil {
		return nil, fmt.Errorf("opening %q: %v", h.path, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking to %d: %v", offset, err)
	}
	var r io.Reader = f
	if length >= 0 {
		r = io.LimitReader(f, length)
	}
	return fileRangeReader{r, f}, nil
}
