//go:build unix

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapped keeps the region file memory-mapped and hands out the live
// mapping. Reads see the producer's writes directly, torn or not; the
// decoder's checksums are the only defence, which is the protocol's
// contract.
type Mapped struct {
	file *os.File
	data []byte
}

// OpenMapped maps the file at path read-only.
func OpenMapped(path string) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	m := &Mapped{file: f}
	if err := m.remap(); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mapped) remap() error {
	info, err := m.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRead, err)
	}
	size := int(info.Size())
	if size == 0 {
		return fmt.Errorf("%w: region file is empty", ErrRead)
	}
	if m.data != nil {
		if len(m.data) == size {
			return nil
		}
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("%w: munmap: %v", ErrRead, err)
		}
		m.data = nil
	}
	data, err := unix.Mmap(int(m.file.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("%w: mmap: %v", ErrRead, err)
	}
	m.data = data
	return nil
}

func (m *Mapped) Bytes() ([]byte, error) {
	if m.file == nil {
		return nil, fmt.Errorf("%w: provider closed", ErrRead)
	}
	// The producer extends the file when datasources are added; remap
	// keeps the view covering the whole region.
	if err := m.remap(); err != nil {
		return nil, err
	}
	return m.data, nil
}

func (m *Mapped) Close() error {
	if m.file == nil {
		return nil
	}
	var first error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			first = err
		}
		m.data = nil
	}
	if err := m.file.Close(); err != nil && first == nil {
		first = err
	}
	m.file = nil
	return first
}
