package identity

import (
	"os"
	"path/filepath"
	"sync"
)

// DocumentSerializer converts a whole document between its in-memory and
// on-disk forms. Implementations decide the markup.
type DocumentSerializer[T any] interface {
	Empty() T
	Marshal(doc T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// DocumentFile owns a single file that holds an entire document. Every read
// parses the file fresh, so readers always observe the last completed
// rewrite. Every mutation serializes the in-memory change and the full
// rewrite under one mutex, so concurrent writers never interleave partial
// writes. The rewrite is the atomic visibility point; readers do not take
// the lock.
type DocumentFile[T any] struct {
	path       string
	serializer DocumentSerializer[T]
	mu         sync.Mutex
}

// NewDocumentFile binds path to serializer, creating the parent directory
// and an empty document when the file does not exist yet.
func NewDocumentFile[T any](path string, serializer DocumentSerializer[T]) (*DocumentFile[T], error) {
	d := &DocumentFile[T]{
		path:       path,
		serializer: serializer,
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, storageFault(err, "failed to stat document file")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, storageFault(err, "failed to create document directory")
			}
		}
		if err := d.write(serializer.Empty()); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *DocumentFile[T]) Path() string {
	return d.path
}

// Load parses the file fresh. Lock-free: a reader racing a writer sees
// either the previous or the new complete document.
func (d *DocumentFile[T]) Load() (T, error) {
	var zero T

	data, err := os.ReadFile(d.path)
	if err != nil {
		return zero, storageFault(err, "failed to read document file")
	}

	doc, err := d.serializer.Unmarshal(data)
	if err != nil {
		return zero, storageFault(err, "failed to parse document file")
	}

	return doc, nil
}

// Update applies fn to the current document and rewrites the whole file,
// all under the single writer lock.
func (d *DocumentFile[T]) Update(fn func(doc T) (T, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, err := d.Load()
	if err != nil {
		return err
	}

	doc, err = fn(doc)
	if err != nil {
		return err
	}

	return d.write(doc)
}

// write stages the serialized document in a sibling temp file and renames
// it over the target. The rename is the atomic visibility point lock-free
// readers depend on: a reader racing a writer must never observe a
// truncated or half-written document.
func (d *DocumentFile[T]) write(doc T) error {
	data, err := d.serializer.Marshal(doc)
	if err != nil {
		return storageFault(err, "failed to serialize document")
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*")
	if err != nil {
		return storageFault(err, "failed to stage document rewrite")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return storageFault(err, "failed to stage document rewrite")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return storageFault(err, "failed to stage document rewrite")
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return storageFault(err, "failed to stage document rewrite")
	}

	if err := os.Rename(tmp.Name(), d.path); err != nil {
		os.Remove(tmp.Name())
		return storageFault(err, "failed to publish document rewrite")
	}

	return nil
}
