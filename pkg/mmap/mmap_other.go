//go:build !unix

package mmap

import (
	"io"
	"os"
)

// mapFile falls back to reading the file on platforms without mmap support.
func mapFile(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func unmap([]byte) error { return nil }
