// Package decl loads struct declarations from YAML files.
//
// A declaration file lists the structs of one or more modules:
//
//	address: "0x2"
//	structs:
//	  - name: coin::Coin
//	    type_params: [phantom T]
//	    fields:
//	      - { name: id, type: 0x2::object::UID }
//	      - { name: balance, type: "0x2::balance::Balance<T>" }
//
// Struct names without an address take the file's address. Field types are
// type expressions that may refer to the struct's type parameters by name.
package decl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/movegen/reified/pkg/reified"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidFile  = errors.New("invalid declaration file")
	ErrInvalidParam = errors.New("invalid type parameter")
)

// LoadError reports a declaration file that could not be loaded.
type LoadError struct {
	File   string
	Struct string
	Err    error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	sb.WriteString("decl: ")
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Struct != "" {
		sb.WriteString(e.Struct)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// File is the YAML shape of one declaration file.
type File struct {
	Address string       `yaml:"address"`
	Structs []StructSpec `yaml:"structs"`
}

// StructSpec declares one struct.
type StructSpec struct {
	Name       string      `yaml:"name"`
	TypeParams []ParamSpec `yaml:"type_params"`
	Fields     []FieldSpec `yaml:"fields"`
}

// ParamSpec is a type parameter, written either as a scalar ("T" or
// "phantom T") or as a mapping with name and phantom keys.
type ParamSpec struct {
	Name    string `yaml:"name"`
	Phantom bool   `yaml:"phantom"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (p *ParamSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		words := strings.Fields(node.Value)
		switch {
		case len(words) == 1:
			*p = ParamSpec{Name: words[0]}
		case len(words) == 2 && words[0] == "phantom":
			*p = ParamSpec{Name: words[1], Phantom: true}
		default:
			return fmt.Errorf("%w %q at line %d", ErrInvalidParam, node.Value, node.Line)
		}
		return nil
	}
	type alias ParamSpec
	if err := node.Decode((*alias)(p)); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("%w: missing name at line %d", ErrInvalidParam, node.Line)
	}
	return nil
}

// FieldSpec declares one field. JSON overrides the exposed name, which
// defaults to the camelCase form of Name.
type FieldSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	JSON string `yaml:"json,omitempty"`
}

// Parse decodes one declaration file. Unknown keys are rejected; name is
// only used in error messages.
func Parse(name string, data []byte) ([]*reified.StructDecl, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var decls []*reified.StructDecl
	for {
		var f File
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &LoadError{File: name, Err: fmt.Errorf("%w: %v", ErrInvalidFile, err)}
		}
		built, err := f.Decls()
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				le.File = name
				return nil, le
			}
			return nil, &LoadError{File: name, Err: err}
		}
		decls = append(decls, built...)
	}
	return decls, nil
}

// Decls converts the file into validated declarations.
func (f *File) Decls() ([]*reified.StructDecl, error) {
	decls := make([]*reified.StructDecl, 0, len(f.Structs))
	for _, s := range f.Structs {
		d, err := s.decl(f.Address)
		if err != nil {
			return nil, &LoadError{Struct: s.Name, Err: err}
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func (s *StructSpec) decl(address string) (*reified.StructDecl, error) {
	name := s.Name
	if strings.Count(name, "::") == 1 {
		if address == "" {
			return nil, fmt.Errorf("%w: %q has no address and the file sets none", ErrInvalidFile, name)
		}
		name = address + "::" + name
	}
	d := &reified.StructDecl{Name: name}
	for _, p := range s.TypeParams {
		d.TypeParams = append(d.TypeParams, reified.TypeParam{Name: p.Name, Phantom: p.Phantom})
	}
	for _, f := range s.Fields {
		t, err := d.ParseFieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		exposed := f.JSON
		if exposed == "" {
			exposed = reified.CamelCase(f.Name)
		}
		d.Fields = append(d.Fields, reified.FieldDecl{Name: exposed, Wire: f.Name, Type: t})
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFile reads and parses one declaration file.
func LoadFile(path string) ([]*reified.StructDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: err}
	}
	return Parse(path, data)
}

// LoadFS parses every file in fsys matching pattern, in lexical order.
func LoadFS(fsys fs.FS, pattern string) ([]*reified.StructDecl, error) {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var decls []*reified.StructDecl
	for _, m := range matches {
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, &LoadError{File: m, Err: err}
		}
		d, err := Parse(m, data)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d...)
	}
	return decls, nil
}

// LoadPaths loads files and directories. A directory contributes its
// *.yaml and *.yml files, not recursively.
func LoadPaths(paths ...string) ([]*reified.StructDecl, error) {
	var decls []*reified.StructDecl
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &LoadError{File: p, Err: err}
		}
		var d []*reified.StructDecl
		if info.IsDir() {
			d, err = loadDir(p)
		} else {
			d, err = LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		decls = append(decls, d...)
	}
	return decls, nil
}

func loadDir(dir string) ([]*reified.StructDecl, error) {
	fsys := os.DirFS(dir)
	var decls []*reified.StructDecl
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		d, err := LoadFS(fsys, pattern)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) && le.File != "" {
				le.File = filepath.Join(dir, le.File)
			}
			return nil, err
		}
		decls = append(decls, d...)
	}
	return decls, nil
}
