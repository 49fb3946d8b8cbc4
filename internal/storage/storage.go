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

// Package storage provides ranged reads of objects held in Google Cloud
// Storage or in a local directory tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMissingOrInvalidToken is returned when a request carries no usable
	// bearer token.
	ErrMissingOrInvalidToken = errors.New("missing or invalid bearer token")
	// ErrObjectNotExist is returned by local clients for missing objects.
	ErrObjectNotExist = errors.New("object does not exist")

	errUnsupportedWhence = errors.New("seek relative to end is not supported")
)

// Client is an interface to the storage engine.
type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle
}

// ObjectHandle is an interface to the actual storage engine in use.
type ObjectHandle interface {
	// NewRangeReader returns a reader that reads from a specified
	// range. Length of -1 means to capture everything until the
	// end.
	NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error)
}

// Factory returns the client to use for serving req.
type Factory func(req *http.Request) (Client, error)

// ReadSeeker adapts an ObjectHandle to io.ReadSeeker. Each seek that moves
// the offset closes the current range reader; the next Read opens a new one
// reaching to the end of the object.
type ReadSeeker struct {
	ctx    context.Context
	handle ObjectHandle
	offset int64
	r      io.ReadCloser
}

// NewReadSeeker returns a ReadSeeker positioned at the start of the object.
func NewReadSeeker(ctx context.Context, handle ObjectHandle) *ReadSeeker {
	return &ReadSeeker{ctx: ctx, handle: handle}
}

func (rs *ReadSeeker) Read(p []byte) (int, error) {
	if rs.r == nil {
		r, err := rs.handle.NewRangeReader(rs.ctx, rs.offset, -1)
		if err != nil {
			return 0, err
		}
		rs.r = r
	}
	n, err := rs.r.Read(p)
	rs.offset += int64(n)
	return n, err
}

// Seek sets the offset for the next Read. Seeking relative to the end of the
// object is not supported.
func (rs *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = rs.offset + offset
	default:
		return rs.offset, errUnsupportedWhence
	}
	if abs < 0 {
		return rs.offset, fmt.Errorf("negative offset %d", abs)
	}
	if abs != rs.offset {
		if err := rs.Close(); err != nil {
			return rs.offset, err
		}
		rs.offset = abs
	}
	return abs, nil
}

// Close releases the current range reader, if any.
func (rs *ReadSeeker) Close() error {
	if rs.r == nil {
		return nil
	}
	err := rs.r.Close()
	rs.r = nil
	return err
}
