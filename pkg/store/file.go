package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileExt = ".json"

// FileStore keeps one JSON file per snapshot in a directory.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore, ensuring the directory exists.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioError(fmt.Sprintf("mkdir %s", dir), err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the snapshots.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+fileExt)
}

// Save writes the snapshot. The file is replaced atomically.
func (f *FileStore) Save(ctx context.Context, s Snapshot) error {
	if err := checkID(s.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ioError("json marshal", err)
	}

	tmp, err := os.CreateTemp(f.dir, s.ID+".*.tmp")
	if err != nil {
		return ioError("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ioError("write "+tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("close "+tmp.Name(), err)
	}
	fn := f.path(s.ID)
	if err := os.Rename(tmp.Name(), fn); err != nil {
		return ioError("rename to "+fn, err)
	}
	return nil
}

// Load reads the snapshot.
func (f *FileStore) Load(ctx context.Context, id string) (Snapshot, error) {
	if err := checkID(id); err != nil {
		return Snapshot{}, err
	}
	fn := f.path(id)
	data, err := os.ReadFile(fn)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return Snapshot{}, notFound(id)
		}
		return Snapshot{}, ioError("read "+fn, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, ioError("json unmarshal "+fn, err)
	}
	s.ID = id
	return s, nil
}

// Delete removes the snapshot file.
func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	fn := f.path(id)
	if err := os.Remove(fn); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return ioError("remove "+fn, err)
	}
	return nil
}

// List returns the IDs of the snapshot files in the directory.
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, ioError("read dir "+f.dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if id := strings.TrimSuffix(name, fileExt); ValidID(id) {
			ids = append(ids, id)
		}
	}
	return sortedIDs(ids), nil
}
