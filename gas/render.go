package gas

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Render writes obj as an indented attribute listing.
func Render(w io.Writer, obj *Object) error {
	var b strings.Builder
	fmt.Fprintf(&b, "(%s) 0x%x = ", obj.TypeName, obj.GVA)
	renderValue(&b, obj.Value, 0)
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

func renderValue(b *strings.Builder, v cty.Value, depth int) {
	switch {
	case v.IsNull():
		b.WriteString("null")
	case !v.IsKnown():
		b.WriteString("?")
	case v.Type().IsObjectType():
		attrs := v.Type().AttributeTypes()
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		slices.Sort(names)
		b.WriteString("{\n")
		for _, name := range names {
			b.WriteString(strings.Repeat("  ", depth+1))
			b.WriteString(name)
			b.WriteString(" = ")
			renderValue(b, v.GetAttr(name), depth+1)
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteByte('}')
	case v.Type() == cty.Number:
		b.WriteString(v.AsBigFloat().Text('f', -1))
	case v.Type() == cty.Bool:
		fmt.Fprint(b, v.True())
	case v.Type() == cty.String:
		b.WriteString(v.AsString())
	default:
		b.WriteString(v.GoString())
	}
}
