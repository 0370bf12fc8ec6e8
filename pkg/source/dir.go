package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/movegen/reified/pkg/reified"
)

const (
	extJSON   = ".json"
	extBrotli = ".json.br"
)

// DirSource serves objects dumped as files named by object id, either
// `<id>.json` or brotli-compressed `<id>.json.br`. Ids are rendered in
// their long form.
type DirSource struct {
	Root string
}

// NewDirSource returns a source reading from root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

func (d *DirSource) path(id reified.Addr, ext string) string {
	return filepath.Join(d.Root, id.String()+ext)
}

func (d *DirSource) GetObject(ctx context.Context, id reified.Addr) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(id, extJSON))
	if errors.Is(err, os.ErrNotExist) {
		data, err = readBrotli(d.path(id, extBrotli))
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", id, err)
	}
	return ParseObject(data)
}

func readBrotli(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(brotli.NewReader(f))
}

// Save writes obj into the directory, compressed when compress is set. It
// returns the written path.
func (d *DirSource) Save(obj *Object, compress bool) (string, error) {
	id, err := reified.ParseAddr(obj.ObjectID)
	if err != nil {
		return "", fmt.Errorf("source: object id %q: %w", obj.ObjectID, err)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", err
	}

	path := d.path(id, extJSON)
	if compress {
		path = d.path(id, extBrotli)
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
		if _, err := w.Write(data); err != nil {
			return "", err
		}
		if err := w.Close(); err != nil {
			return "", err
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
