package u3v

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// decompressZip unpacks a single-file zip archive, the on-wire container
// some U3V devices use for their GenICam XML manifest entry. Spec.md §1
// scopes the zip decoder out of this module's core, specifying it only by
// input/output contract: compressed bytes in, XML bytes out.
func decompressZip(data []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip manifest entry: %w", err)
	}
	if len(r.File) == 0 {
		return nil, fmt.Errorf("zip manifest entry is empty")
	}
	f, err := r.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", r.File[0].Name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
