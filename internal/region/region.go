// Package region supplies byte views of a producer's shared snapshot
// region. Providers own the underlying file or mapping; the decoder only
// ever sees the returned slice and must be handed a fresh view on every
// poll, since the producer overwrites the region in place.
package region

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrRead reports a collaborator-level failure to position or read the
// underlying region.
var ErrRead = errors.New("region read failed")

// Provider hands out the current contents of a snapshot region.
type Provider interface {
	// Bytes returns a view of the current region contents. The slice is
	// only valid until the next call to Bytes or Close, and for mapped
	// providers it aliases live producer memory.
	Bytes() ([]byte, error)
	Close() error
}

// File re-reads a regular file on every poll. It reuses a single buffer,
// growing it when the region grows.
type File struct {
	file *os.File
	buf  []byte
}

// OpenFile opens path for polling.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return &File{file: f}, nil
}

func (r *File) Bytes() ([]byte, error) {
	if r.file == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrRead)
	}
	info, err := r.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	size := int(info.Size())
	if cap(r.buf) < size {
		r.buf = make([]byte, size)
	}
	r.buf = r.buf[:size]
	n, err := r.file.ReadAt(r.buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	return r.buf[:n], nil
}

func (r *File) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.buf = nil
	return err
}
