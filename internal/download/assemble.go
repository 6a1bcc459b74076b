package download

import (
	"fmt"
	"os"
	"path/filepath"
)

// Assemble concatenates segment payloads in the order given. The caller
// guarantees segments are sorted by index.
func Assemble(segments []Segment) []byte {
	var total int
	for _, segment := range segments {
		total += len(segment.Data)
	}
	data := make([]byte, 0, total)
	for _, segment := range segments {
		data = append(data, segment.Data...)
	}
	return data
}

// WriteFile persists the assembled payload, creating parent directories as
// needed. The payload lands in a temp file next to the destination and is
// renamed over it, so readers never observe a half-written file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpPath := path + ".partial"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func errSizeMismatch(expected, got int64) error {
	return fmt.Errorf("assembled size mismatch: expected %d bytes, got %d", expected, got)
}
