// Package fsutil provides the two filesystem primitives every other
// package in this module builds on: atomic publish (write temp, fsync,
// rename) and a short-lived OS advisory lock on a sentinel file. Nothing
// here understands sessions, slots, or packing state — it is pure
// filesystem plumbing, grounded in the bbolt-backed store's reliance on
// the same fsync+rename durability contract internally, and in
// other_examples/22a0994a_umputun-ralphex__pkg-web-session_manager.go.go's
// use of syscall.Flock for liveness probing.
package fsutil

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// WriteAtomic writes data to a temp file in dir and renames it over path,
// fsyncing before the rename so a crash never leaves a partially written
// file visible under the final name (GLOSSARY "Atomic publish").
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// WriteJSONAtomic marshals v and publishes it via WriteAtomic.
func WriteJSONAtomic(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteAtomic(path, data, perm)
}

// ReadJSONWithRetry unmarshals path into v, retrying once with a short
// jitter if the first read races a concurrent WriteAtomic rename.
func ReadJSONWithRetry(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		time.Sleep(time.Duration(10+rand.Intn(40)) * time.Millisecond)
		data, err = os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
