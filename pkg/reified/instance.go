package reified

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/movegen/reified/pkg/typetag"
)

// Instance is a decoded struct value. Instances are immutable; accessors
// return copies of mutable field values.
type Instance struct {
	desc   *Struct
	values []any
}

// Descriptor returns the resolved descriptor that produced the instance.
func (i *Instance) Descriptor() *Struct { return i.desc }

// TypeName returns the bare struct name.
func (i *Instance) TypeName() string { return i.desc.decl.Name }

// FullTypeName returns the compressed resolved tag.
func (i *Instance) FullTypeName() string { return i.desc.full }

// Tag returns the resolved tag.
func (i *Instance) Tag() typetag.TypeTag { return i.desc.tag }

// TypeArgs returns the compressed tags of the type arguments.
func (i *Instance) TypeArgs() []string { return i.desc.TypeArgStrings() }

// FieldNames returns the exposed field names in binary order.
func (i *Instance) FieldNames() []string { return i.desc.FieldNames() }

// Get returns the named field value.
func (i *Instance) Get(name string) (any, bool) {
	idx, ok := i.desc.byName[name]
	if !ok {
		return nil, false
	}
	return cloneValue(i.values[idx]), true
}

// Field is like Get but returns nil for unknown names.
func (i *Instance) Field(name string) any {
	v, _ := i.Get(name)
	return v
}

// Values returns every field value keyed by exposed name.
func (i *Instance) Values() map[string]any {
	out := make(map[string]any, len(i.values))
	for idx, f := range i.desc.fields {
		out[f.name] = cloneValue(i.values[idx])
	}
	return out
}

// Equal reports whether o has the same resolved type and equal fields.
func (i *Instance) Equal(o *Instance) bool {
	if i == nil || o == nil {
		return i == o
	}
	if i.desc.full != o.desc.full {
		return false
	}
	for idx, f := range i.desc.fields {
		if !f.arg.equal(i.values[idx], o.values[idx]) {
			return false
		}
	}
	return true
}

// ToJSONField renders the fields keyed by exposed name. Wide integers are
// decimal strings and addresses are hex strings.
func (i *Instance) ToJSONField() map[string]any {
	out := make(map[string]any, len(i.values))
	for idx, f := range i.desc.fields {
		out[f.name] = f.arg.toJSON(i.values[idx])
	}
	return out
}

// ToJSON is ToJSONField plus the `$typeName` marker and, for generic types,
// `$typeArgs`.
func (i *Instance) ToJSON() map[string]any {
	out := i.ToJSONField()
	out["$typeName"] = i.desc.decl.Name
	if len(i.desc.typeArgs) > 0 {
		out["$typeArgs"] = i.desc.TypeArgStrings()
	}
	return out
}

func (i *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.ToJSON())
}

// ToBCS encodes the instance in binary form.
func (i *Instance) ToBCS() ([]byte, error) {
	raw, err := i.raw()
	if err != nil {
		return nil, stamp(err, OpToBCS, i.desc.full, nil)
	}
	data, err := encodeRaw(i.desc, raw)
	if err != nil {
		return nil, stamp(err, OpToBCS, i.desc.full, nil)
	}
	return data, nil
}

// raw returns the Move layout of the instance keyed by wire name.
func (i *Instance) raw() (map[string]any, error) {
	out := make(map[string]any, len(i.values))
	for idx, f := range i.desc.fields {
		r, err := f.arg.toRaw(i.values[idx])
		if err != nil {
			return nil, atField(err, f.name)
		}
		out[f.wire] = r
	}
	return out, nil
}

func (i *Instance) String() string {
	var sb strings.Builder
	sb.WriteString(i.desc.full)
	sb.WriteString(" {")
	for idx, f := range i.desc.fields {
		if idx > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, " %s: %v", f.name, i.values[idx])
	}
	sb.WriteString(" }")
	return sb.String()
}
