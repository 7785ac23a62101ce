package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

var ErrIngressTooLarge = errors.New("ingress exceeds max upload size")

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// split buffers src once and returns n readers over the same bytes.
// A read failure is reported by every branch. Nothing is read when n is 0.
// limit <= 0 disables the size bound.
func split(src io.Reader, n int, limit int64) ([]io.Reader, int64, error) {
	if n == 0 {
		return nil, 0, nil
	}

	data, err := readBounded(src, limit)

	branches := make([]io.Reader, n)
	for i := range branches {
		if err != nil {
			branches[i] = errReader{err: err}
			continue
		}
		branches[i] = bytes.NewReader(data)
	}

	return branches, int64(len(data)), err
}

func readBounded(src io.Reader, limit int64) ([]byte, error) {
	if src == nil {
		return nil, fmt.Errorf("read ingress: nil stream")
	}
	if limit <= 0 {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("read ingress: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read ingress: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrIngressTooLarge, limit)
	}
	return data, nil
}
