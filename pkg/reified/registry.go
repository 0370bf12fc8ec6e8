package reified

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/movegen/reified/pkg/typetag"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds struct declarations and the descriptors resolved from them.
// Registries are independent; nothing is shared between two of them.
type Registry struct {
	// mutex protects decls; phantom flags are stored under its read lock
	mutex sync.RWMutex

	// decls maps compressed bare names to declarations
	decls map[string]*StructDecl

	// cache maps compressed full tags to resolved descriptors
	cache *xsync.MapOf[string, *Struct]

	// phantoms memoises inferred phantom flags per bare name
	phantoms *xsync.MapOf[string, []bool]

	logger *log.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Logger receives registration and resolution events. Nil disables
	// logging.
	Logger *log.Logger
}

// RegistrationOptions configures declaration registration behavior.
type RegistrationOptions struct {
	// ValidateDecl checks the declaration before it is stored
	ValidateDecl bool

	// AllowOverwrite permits replacing an existing declaration
	AllowOverwrite bool
}

// DefaultRegistrationOptions returns the default registration options.
func DefaultRegistrationOptions() RegistrationOptions {
	return RegistrationOptions{
		ValidateDecl:   true,
		AllowOverwrite: false,
	}
}

// Factory builds the descriptor of one declaration from type arguments.
type Factory func(args ...TypeArg) (*Struct, error)

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOptions) *Registry {
	r := &Registry{
		decls:    make(map[string]*StructDecl),
		cache:    xsync.NewMapOf[string, *Struct](),
		phantoms: xsync.NewMapOf[string, []bool](),
	}
	if len(opts) > 0 {
		r.logger = opts[0].Logger
	}
	return r
}

func (r *Registry) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf("[Reified Registry] "+format, args...)
	}
}

// Register stores a declaration. The registry keeps its own copy.
func (r *Registry) Register(decl *StructDecl, opts ...RegistrationOptions) error {
	if decl == nil {
		return fmt.Errorf("declaration cannot be nil")
	}
	options := DefaultRegistrationOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	d := copyDecl(decl)
	if name, err := typetag.Compress(d.Name); err == nil {
		d.Name = name
	}

	if options.ValidateDecl {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("declaration validation failed: %w", err)
		}
		if err := r.checkPhantomUse(d); err != nil {
			return fmt.Errorf("declaration validation failed: %w", err)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists := r.decls[d.Name]
	if exists && !options.AllowOverwrite {
		return fmt.Errorf("type '%s' already registered", d.Name)
	}
	r.decls[d.Name] = d
	r.phantoms.Clear()
	if exists {
		r.cache.Clear()
		r.logf("replaced %s", d.Name)
		return nil
	}
	r.logf("registered %s (%d type parameters, %d fields)", d.Name, len(d.TypeParams), len(d.Fields))
	return nil
}

// RegisterAll registers multiple declarations at once.
func (r *Registry) RegisterAll(decls []*StructDecl, opts ...RegistrationOptions) error {
	for _, d := range decls {
		if err := r.Register(d, opts...); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers decls with the default options or panics.
func (r *Registry) MustRegister(decls ...*StructDecl) *Registry {
	if err := r.RegisterAll(decls); err != nil {
		panic(err)
	}
	return r
}

func copyDecl(d *StructDecl) *StructDecl {
	out := &StructDecl{
		Name:       d.Name,
		TypeParams: append([]TypeParam(nil), d.TypeParams...),
		Fields:     append([]FieldDecl(nil), d.Fields...),
	}
	return out
}

// Lookup returns the declaration registered under a bare name.
func (r *Registry) Lookup(name string) (*StructDecl, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.lookupLocked(name)
}

// lookupLocked is Lookup for callers holding the mutex.
func (r *Registry) lookupLocked(name string) (*StructDecl, bool) {
	if c, err := typetag.Compress(name); err == nil {
		name = c
	}
	d, ok := r.decls[name]
	return d, ok
}

// HasType reports whether a declaration exists for name.
func (r *Registry) HasType(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Count returns the number of declarations.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.decls)
}

// Names returns the registered bare names, sorted.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	names := make([]string, 0, len(r.decls))
	for name := range r.decls {
		names = append(names, name)
	}
	r.mutex.RUnlock()
	sort.Strings(names)
	return names
}

// CacheSize returns the number of memoised descriptors.
func (r *Registry) CacheSize() int {
	return r.cache.Size()
}

// Validate checks every declaration against the whole registry: referenced
// types exist with the right arity, phantom parameters are never decoded and
// no struct contains itself.
func (r *Registry) Validate() error {
	for _, name := range r.Names() {
		d, _ := r.Lookup(name)
		if err := d.Validate(); err != nil {
			return err
		}
		for _, f := range d.Fields {
			if err := r.checkRefs(f.Type); err != nil {
				return atField(asDecodeError(err), f.Wire)
			}
		}
		if err := r.checkPhantomUse(d); err != nil {
			return err
		}
	}
	return nil
}

// checkRefs requires every struct t decodes to be registered. Arguments in
// phantom positions only need to be well-formed.
func (r *Registry) checkRefs(t typetag.TypeTag) error {
	if t.Kind == typetag.KindStruct {
		d, ok := r.Lookup(t.Base())
		if !ok {
			return newError(ErrUnknownType, "%s", t.Base())
		}
		if len(d.TypeParams) != len(t.Params) {
			return arityMismatch(len(d.TypeParams), len(t.Params))
		}
		phantoms, err := r.phantomParams(d)
		if err != nil {
			return err
		}
		for i, p := range t.Params {
			if phantoms[i] {
				continue
			}
			if err := r.checkRefs(p); err != nil {
				return err
			}
		}
		return nil
	}
	for _, p := range t.Params {
		if err := r.checkRefs(p); err != nil {
			return err
		}
	}
	return nil
}

// checkPhantomUse rejects a declaration that decodes a parameter it marks
// phantom.
func (r *Registry) checkPhantomUse(d *StructDecl) error {
	r.mutex.RLock()
	used, err := r.usedParams(d, map[string]bool{})
	r.mutex.RUnlock()
	if err != nil {
		return err
	}
	for i, p := range d.TypeParams {
		if p.Phantom && used[i] {
			return invalidDecl(d.Name, "phantom type parameter %q is used by a field", p.Name)
		}
	}
	return nil
}

// PhantomParams reports, per type parameter of name, whether it is phantom:
// either declared so or never used in a position that is decoded.
func (r *Registry) PhantomParams(name string) ([]bool, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, newError(ErrUnknownType, "%s", name)
	}
	flags, err := r.phantomParams(d)
	if err != nil {
		return nil, err
	}
	return append([]bool(nil), flags...), nil
}

// phantomParams returns the memoised phantom flags of d, computing them
// under the read lock.
func (r *Registry) phantomParams(d *StructDecl) ([]bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if flags, ok := r.phantoms.Load(d.Name); ok {
		return flags, nil
	}
	used, err := r.usedParams(d, map[string]bool{})
	if err != nil {
		return nil, err
	}
	flags := make([]bool, len(d.TypeParams))
	for i, p := range d.TypeParams {
		flags[i] = p.Phantom || !used[i]
	}
	r.phantoms.Store(d.Name, flags)
	return flags, nil
}

// usedParams marks the parameters of d that some field decodes. The caller
// holds the read lock.
func (r *Registry) usedParams(d *StructDecl, visiting map[string]bool) ([]bool, error) {
	if visiting[d.Name] {
		return nil, invalidDecl(d.Name, "struct contains itself")
	}
	visiting[d.Name] = true
	defer delete(visiting, d.Name)

	used := make([]bool, len(d.TypeParams))
	var mark func(t typetag.TypeTag) error
	mark = func(t typetag.TypeTag) error {
		switch t.Kind {
		case typetag.KindParam:
			if t.Index >= 0 && t.Index < len(used) {
				used[t.Index] = true
			}
			return nil
		case typetag.KindStruct:
			nested, ok := r.lookupLocked(t.Base())
			if !ok || len(nested.TypeParams) != len(t.Params) {
				break
			}
			var flags []bool
			if cached, ok := r.phantoms.Load(nested.Name); ok {
				flags = cached
			} else {
				nestedUsed, err := r.usedParams(nested, visiting)
				if err != nil {
					return err
				}
				flags = make([]bool, len(nestedUsed))
				for i, p := range nested.TypeParams {
					flags[i] = p.Phantom || !nestedUsed[i]
				}
			}
			for i, p := range t.Params {
				if !flags[i] {
					if err := mark(p); err != nil {
						return err
					}
				}
			}
			return nil
		}
		for _, p := range t.Params {
			if err := mark(p); err != nil {
				return err
			}
		}
		return nil
	}
	for _, f := range d.Fields {
		if err := mark(f.Type); err != nil {
			return nil, err
		}
	}
	return used, nil
}

// Reified resolves the declaration called name with args bound to its type
// parameters, in order. Arguments in phantom positions may be any TypeArg;
// they are reduced to their tag.
func (r *Registry) Reified(name string, args ...TypeArg) (*Struct, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, stamp(newError(ErrUnknownType, "%s", name), OpResolve, name, nil)
	}
	phantoms, err := r.phantomParams(d)
	if err != nil {
		return nil, stamp(err, OpResolve, name, nil)
	}
	rs := &resolver{reg: r}
	s, err := rs.instantiate(d, phantoms, args)
	return s, stamp(err, OpResolve, name, nil)
}

// MustReified is like Reified but panics on failure.
func (r *Registry) MustReified(name string, args ...TypeArg) *Struct {
	s, err := r.Reified(name, args...)
	if err != nil {
		panic(err)
	}
	return s
}

// Factory returns the generic factory of name. Calling it twice with
// arguments of equal tags returns the same descriptor.
func (r *Registry) Factory(name string) (Factory, error) {
	if _, ok := r.Lookup(name); !ok {
		return nil, stamp(newError(ErrUnknownType, "%s", name), OpResolve, name, nil)
	}
	return func(args ...TypeArg) (*Struct, error) {
		return r.Reified(name, args...)
	}, nil
}

// Resolve loads the descriptor of a full tag string: a primitive, a vector
// or an instantiated struct. Phantom positions become stubs, so their
// arguments need not be registered.
func (r *Registry) Resolve(tag string) (TypeArg, error) {
	t, err := typetag.Parse(tag)
	if err != nil {
		return nil, stamp(&DecodeError{Kind: ErrTagMismatch, Position: -1, Err: err}, OpResolve, tag, nil)
	}
	return r.ResolveTag(t)
}

// ResolveTag is Resolve over a parsed tag.
func (r *Registry) ResolveTag(t typetag.TypeTag) (TypeArg, error) {
	if t.IsGeneric() {
		return nil, stamp(newError(ErrInvalidValue, "unbound type parameter in %s", t), OpResolve, t.String(), nil)
	}
	rs := &resolver{reg: r}
	arg, err := rs.resolve(t, nil)
	if err != nil {
		return nil, stamp(err, OpResolve, t.String(), nil)
	}
	return arg, nil
}

// ResolveStruct is Resolve restricted to struct tags.
func (r *Registry) ResolveStruct(tag string) (*Struct, error) {
	arg, err := r.Resolve(tag)
	if err != nil {
		return nil, err
	}
	s, ok := arg.(*Struct)
	if !ok {
		return nil, stamp(mismatch(ErrWrongStructKind, -1, "a struct", arg.String()), OpResolve, tag, nil)
	}
	return s, nil
}

// IsInstanceOf reports whether tag names the struct called name, ignoring
// type arguments.
func (r *Registry) IsInstanceOf(name, tag string) bool {
	base, _, err := typetag.ParseTypeName(tag)
	if err != nil {
		return false
	}
	want, err := typetag.Compress(name)
	return err == nil && want == base
}
