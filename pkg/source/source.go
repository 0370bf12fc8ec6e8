// Package source fetches on-chain objects and decodes them into reified
// instances.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/movegen/reified/pkg/reified"
)

var (
	ErrNotFound  = errors.New("source: object not found")
	ErrNoContent = errors.New("source: object carries neither bcs nor parsed content")
)

// Object is one object as reported by a node. BCS and Content are each
// optional; decoding prefers BCS.
type Object struct {
	ObjectID string              `json:"objectId"`
	Version  string              `json:"version,omitempty"`
	Digest   string              `json:"digest,omitempty"`
	Type     string              `json:"type,omitempty"`
	BCS      *reified.RawObject  `json:"bcs,omitempty"`
	Content  *reified.ParsedData `json:"content,omitempty"`
}

// Source looks objects up by id.
type Source interface {
	GetObject(ctx context.Context, id reified.Addr) (*Object, error)
}

// TypeName returns the object's reported type from whichever part carries
// it.
func (o *Object) TypeName() string {
	switch {
	case o.Type != "":
		return o.Type
	case o.BCS != nil:
		return o.BCS.Type
	case o.Content != nil:
		return o.Content.Type
	}
	return ""
}

// Decode decodes obj with desc.
func Decode(desc *reified.Struct, obj *Object) (*reified.Instance, error) {
	switch {
	case obj.BCS != nil:
		return desc.FromRawObject(*obj.BCS)
	case obj.Content != nil:
		return desc.FromParsedData(*obj.Content)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoContent, obj.ObjectID)
}

// Fetch looks up id in src and decodes it with desc. A reported type that
// does not instantiate desc fails with reified.ErrWrongStructKind or
// reified.ErrTagMismatch.
func Fetch(ctx context.Context, src Source, desc *reified.Struct, id reified.Addr) (*reified.Instance, error) {
	obj, err := src.GetObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id, err)
	}
	return Decode(desc, obj)
}

// FetchAny looks up id in src and decodes it with the descriptor reg
// resolves from the object's reported type.
func FetchAny(ctx context.Context, src Source, reg *reified.Registry, id reified.Addr) (*reified.Instance, error) {
	obj, err := src.GetObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id, err)
	}
	typ := obj.TypeName()
	if typ == "" {
		return nil, fmt.Errorf("%w: %s reports no type", ErrNoContent, id)
	}
	desc, err := reg.ResolveStruct(typ)
	if err != nil {
		return nil, err
	}
	return Decode(desc, obj)
}

// ParseObject decodes one JSON-encoded object. Numbers are kept exact.
func ParseObject(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj Object
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("source: decoding object: %w", err)
	}
	return &obj, nil
}
