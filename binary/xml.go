package binary

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// XMLString renders the node as indented pseudo-XML for logs and debugging.
// Byte content is printed as hex.
func (n Node) XMLString() string {
	var sb strings.Builder
	n.writeXML(&sb, 0)
	return sb.String()
}

// String implements fmt.Stringer.
func (n Node) String() string {
	return n.XMLString()
}

func (n Node) writeXML(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	sb.WriteByte('<')
	sb.WriteString(n.Tag)

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, " %s=%q", k, n.Attrs[k])
	}

	children := n.Children()
	switch {
	case n.Content.Kind == ContentBytes:
		sb.WriteByte('>')
		sb.WriteString(hex.EncodeToString(n.Content.Bytes))
		fmt.Fprintf(sb, "</%s>", n.Tag)
	case len(children) > 0:
		sb.WriteString(">\n")
		for _, child := range children {
			child.writeXML(sb, depth+1)
			sb.WriteByte('\n')
		}
		fmt.Fprintf(sb, "%s</%s>", indent, n.Tag)
	default:
		sb.WriteString("/>")
	}
}
