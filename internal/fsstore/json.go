package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ReadJSON decodes path into out. A missing or blank file reports false
// without error.
func ReadJSON(path string, out any) (bool, error) {
	p, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read json %s: %w", p, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrDecodeFailed, p, err)
	}
	return true, nil
}

func WriteJSONAtomic(path string, v any, opts FileOptions) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrEncodeFailed, p, err)
	}
	return writeAtomic(p, append(data, '\n'), opts)
}

// MutateJSON runs a read-modify-write cycle on a JSON document under an
// exclusive file lock. fn receives the decoded value (zero when the file did
// not exist yet); returning an error leaves the file untouched.
func MutateJSON[T any](ctx context.Context, path string, lockPath string, opts FileOptions, fn func(doc *T, existed bool) error) error {
	if fn == nil {
		return fmt.Errorf("mutate json: nil mutator")
	}
	return WithLock(ctx, lockPath, func() error {
		var doc T
		existed, err := ReadJSON(path, &doc)
		if err != nil {
			return err
		}
		if err := fn(&doc, existed); err != nil {
			return err
		}
		return WriteJSONAtomic(path, doc, opts)
	})
}
