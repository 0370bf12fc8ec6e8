package source

import (
	"context"
	"fmt"

	"github.com/movegen/reified/pkg/reified"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemorySource serves objects from memory. It is safe for concurrent use.
type MemorySource struct {
	objects *xsync.MapOf[reified.Addr, *Object]
}

// NewMemorySource creates a source holding objs.
func NewMemorySource(objs ...*Object) (*MemorySource, error) {
	m := &MemorySource{objects: xsync.NewMapOf[reified.Addr, *Object]()}
	for _, o := range objs {
		if err := m.Put(o); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Put stores obj under its ObjectID, replacing any previous object.
func (m *MemorySource) Put(obj *Object) error {
	id, err := reified.ParseAddr(obj.ObjectID)
	if err != nil {
		return fmt.Errorf("source: object id %q: %w", obj.ObjectID, err)
	}
	m.objects.Store(id, obj)
	return nil
}

// Delete removes the object stored under id.
func (m *MemorySource) Delete(id reified.Addr) {
	m.objects.Delete(id)
}

// Len returns the number of stored objects.
func (m *MemorySource) Len() int {
	return m.objects.Size()
}

func (m *MemorySource) GetObject(ctx context.Context, id reified.Addr) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, ok := m.objects.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return obj, nil
}
