package transport

import "context"

// ChunkedRead splits a read of size bytes starting at address into
// sequential chunkSize pieces, calling readOne for each, and concatenates
// the results. It stops and returns the first error encountered, matching
// spec.md §4.1's "report the first failing sub-transfer's error".
func ChunkedRead(ctx context.Context, address uint64, size, chunkSize int, readOne func(ctx context.Context, addr uint64, n int) ([]byte, error)) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = size
	}
	out := make([]byte, 0, size)
	remaining := size
	addr := address
	for remaining > 0 {
		n := remaining
		if n > chunkSize {
			n = chunkSize
		}
		data, err := readOne(ctx, addr, n)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		addr += uint64(n)
		remaining -= n
	}
	return out, nil
}

// ChunkedWrite splits a write of data into sequential chunkSize pieces,
// calling writeOne for each in order, stopping at the first error.
func ChunkedWrite(ctx context.Context, address uint64, data []byte, chunkSize int, writeOne func(ctx context.Context, addr uint64, chunk []byte) error) error {
	if chunkSize <= 0 {
		chunkSize = len(data)
	}
	addr := address
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := writeOne(ctx, addr, data[off:end]); err != nil {
			return err
		}
		addr += uint64(end - off)
	}
	return nil
}
