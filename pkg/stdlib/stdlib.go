// Package stdlib provides the declarations of the Move standard library and
// Sui framework structs that decoded values depend on, including the
// well-known wrappers that collapse to plain Go values.
package stdlib

import (
	"embed"
	"sync"

	"github.com/movegen/reified/pkg/decl"
	"github.com/movegen/reified/pkg/reified"
)

//go:embed std/*.yaml
var files embed.FS

var (
	once  sync.Once
	decls []*reified.StructDecl
	err   error
)

// Decls returns the framework declarations. The result is shared; callers
// must not modify it.
func Decls() ([]*reified.StructDecl, error) {
	once.Do(func() {
		decls, err = decl.LoadFS(files, "std/*.yaml")
	})
	return decls, err
}

// Register adds the framework declarations to reg.
func Register(reg *reified.Registry) error {
	d, err := Decls()
	if err != nil {
		return err
	}
	return reg.RegisterAll(d)
}

// NewRegistry returns a registry preloaded with the framework declarations.
func NewRegistry(opts ...reified.RegistryOptions) (*reified.Registry, error) {
	reg := reified.NewRegistry(opts...)
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
