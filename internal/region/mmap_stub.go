//go:build !unix

package region

import "fmt"

// Mapped is only available on platforms with mmap support.
type Mapped struct{}

func OpenMapped(path string) (*Mapped, error) {
	return nil, fmt.Errorf("%w: memory-mapped regions are not supported on this platform", ErrRead)
}

func (m *Mapped) Bytes() ([]byte, error) {
	return nil, fmt.Errorf("%w: memory-mapped regions are not supported on this platform", ErrRead)
}

func (m *Mapped) Close() error { return nil }
