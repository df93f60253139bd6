package metadata

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode reads a msgpack-encoded snapshot and validates its links.
func Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Schema != SchemaVersion {
		return nil, fmt.Errorf("snapshot schema %d is not supported (want %d)", snap.Schema, SchemaVersion)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Encode writes snap as msgpack, stamping the current schema version.
func Encode(w io.Writer, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("encode snapshot: nil snapshot")
	}
	out := *snap
	out.Schema = SchemaVersion
	bw := bufio.NewWriter(w)
	if err := msgpack.NewEncoder(bw).Encode(&out); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return bw.Flush()
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	snap, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// Save writes a snapshot file atomically.
func Save(path string, snap *Snapshot) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := Encode(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
