package reified

import (
	"fmt"
	"unicode/utf8"
)

// wellKnown identifies framework types whose field values collapse to a
// simpler Go value when they appear inside another struct.
type wellKnown uint8

const (
	wkNone wellKnown = iota
	wkString
	wkURL
	wkID
	wkUID
	wkOption
	wkBalance
)

const (
	nameString  = "0x1::string::String"
	nameASCII   = "0x1::ascii::String"
	nameOption  = "0x1::option::Option"
	nameURL     = "0x2::url::Url"
	nameID      = "0x2::object::ID"
	nameUID     = "0x2::object::UID"
	nameBalance = "0x2::balance::Balance"
)

var wellKnownNames = map[string]struct {
	kind wellKnown
	wire string
}{
	nameString:  {wkString, "bytes"},
	nameASCII:   {wkString, "bytes"},
	nameURL:     {wkURL, "url"},
	nameID:      {wkID, "bytes"},
	nameUID:     {wkUID, "id"},
	nameOption:  {wkOption, "vec"},
	nameBalance: {wkBalance, "value"},
}

// classify returns the collapse rule for a resolved struct and checks that
// its declaration has the single field the rule relies on.
func classify(s *Struct) (wellKnown, error) {
	rule, ok := wellKnownNames[s.decl.Name]
	if !ok {
		return wkNone, nil
	}
	if len(s.fields) != 1 || s.fields[0].wire != rule.wire {
		return wkNone, invalidDecl(s.decl.Name, "expected a single field %q", rule.wire)
	}
	if _, isVec := s.fields[0].arg.(*Vector); rule.kind == wkOption && !isVec {
		return wkNone, invalidDecl(s.decl.Name, "field %q must be a vector", rule.wire)
	}
	return rule.kind, nil
}

// single returns the descriptor of the one field of a collapsed type.
func (s *Struct) single() TypeArg { return s.fields[0].arg }

// collapse turns the raw field map of a collapsed type into its field value.
func (s *Struct) collapse(raw any) (any, error) {
	if str, ok := raw.(string); ok {
		switch s.special {
		case wkString, wkURL:
			return str, nil
		case wkID, wkUID:
			return coerceAddr(str)
		}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, mismatch(ErrInvalidValue, -1, s.decl.Name, fmt.Sprintf("%T", raw))
	}
	wire := s.fields[0].wire
	inner, present := m[wire]
	if !present {
		return nil, atField(newError(ErrMissingField, "%s", wire), wire)
	}
	v, err := s.single().fromRaw(inner)
	if err != nil {
		return nil, atField(err, wire)
	}
	switch s.special {
	case wkString:
		b, ok := v.([]byte)
		if !ok || !utf8.Valid(b) {
			return nil, newError(ErrInvalidValue, "%s is not valid UTF-8", s.decl.Name)
		}
		return string(b), nil
	case wkOption:
		return optionFromVec(v)
	default:
		return v, nil
	}
}

// expand is the inverse of collapse.
func (s *Struct) expand(v any) (map[string]any, error) {
	var inner any
	switch s.special {
	case wkString:
		str, ok := v.(string)
		if !ok {
			return nil, mismatch(ErrInvalidValue, -1, "string", fmt.Sprintf("%T", v))
		}
		inner = []byte(str)
	case wkOption:
		o, ok := v.(Option)
		if !ok {
			return nil, mismatch(ErrInvalidValue, -1, "Option", fmt.Sprintf("%T", v))
		}
		vec := []any{}
		if o.Valid {
			vec = append(vec, o.Value)
		}
		inner = vec
	default:
		inner = v
	}
	raw, err := s.single().toRaw(inner)
	if err != nil {
		return nil, atField(err, s.fields[0].wire)
	}
	return map[string]any{s.fields[0].wire: raw}, nil
}

func optionFromVec(v any) (any, error) {
	items, err := asSlice(v)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return None(), nil
	case 1:
		return Some(items[0]), nil
	default:
		return nil, newError(ErrInvalidValue, "option holds %d elements", len(items))
	}
}

// optionElem returns the descriptor of T in Option<T>.
func (s *Struct) optionElem() TypeArg {
	return s.single().(*Vector).Elem()
}

// collapsedTyped decodes a typed-fields value of a collapsed type, in the
// shapes the object API reports them.
func (s *Struct) collapsedTyped(item any) (any, error) {
	switch s.special {
	case wkString, wkURL:
		str, ok := item.(string)
		if !ok {
			return nil, mismatch(ErrInvalidValue, -1, "string", fmt.Sprintf("%T", item))
		}
		return str, nil
	case wkID:
		return coerceAddr(item)
	case wkUID:
		if m, ok := item.(map[string]any); ok {
			id, present := m["id"]
			if !present {
				return nil, atField(newError(ErrMissingField, "id"), "id")
			}
			return coerceAddr(id)
		}
		return coerceAddr(item)
	case wkOption:
		if item == nil {
			return None(), nil
		}
		v, err := s.optionElem().fromTyped(item)
		if err != nil {
			return nil, err
		}
		return Some(v), nil
	}
	return nil, newError(ErrInvalidValue, "%s has no collapsed typed form", s.decl.Name)
}

func (s *Struct) collapsedJSON(field any) (any, error) {
	switch s.special {
	case wkOption:
		if field == nil {
			return None(), nil
		}
		v, err := s.optionElem().fromJSON(field)
		if err != nil {
			return nil, err
		}
		return Some(v), nil
	default:
		return s.collapsedTyped(field)
	}
}

func (s *Struct) collapsedToJSON(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case Addr:
		return x.String()
	case Option:
		if !x.Valid {
			return nil
		}
		return s.optionElem().toJSON(x.Value)
	default:
		return nil
	}
}

// collapsed reports whether field values of s are not *Instance.
func (s *Struct) collapsed() bool {
	return s.special != wkNone && s.special != wkBalance
}
