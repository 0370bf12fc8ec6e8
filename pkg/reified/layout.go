package reified

import (
	"fmt"
	"strings"
)

// Layout is the binary schema of a resolved type: a tree of fixed-width
// scalars, length-prefixed vectors and field sequences.
type Layout struct {
	// Kind is the primitive name, "vector" or "struct".
	Kind string `json:"kind"`
	// Type is the compressed full type tag.
	Type string `json:"type"`
	// Field is the wire name when this node is a struct field.
	Field  string   `json:"field,omitempty"`
	Width  int      `json:"width,omitempty"`
	Fields []Layout `json:"fields,omitempty"`
	Elem   *Layout  `json:"elem,omitempty"`
}

// FixedWidth returns the encoded size when it does not depend on the value.
func (l Layout) FixedWidth() (int, bool) {
	switch l.Kind {
	case "vector":
		return 0, false
	case "struct":
		n := 0
		for _, f := range l.Fields {
			w, ok := f.FixedWidth()
			if !ok {
				return 0, false
			}
			n += w
		}
		return n, true
	default:
		return l.Width, true
	}
}

// String renders the layout as an indented tree.
func (l Layout) String() string {
	var sb strings.Builder
	l.write(&sb, 0)
	return sb.String()
}

func (l Layout) write(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if l.Field != "" {
		sb.WriteString(l.Field)
		sb.WriteString(": ")
	}
	sb.WriteString(l.Type)
	if l.Width > 0 {
		fmt.Fprintf(sb, " (%d bytes)", l.Width)
	}
	sb.WriteByte('\n')
	if l.Elem != nil {
		l.Elem.write(sb, depth+1)
	}
	for _, f := range l.Fields {
		f.write(sb, depth+1)
	}
}
