package binary

import (
	"bytes"

	"github.com/opd-ai/wacore/types"
)

// ContentKind identifies which field of Content is populated.
type ContentKind uint8

const (
	// ContentNone means the node carries no content.
	ContentNone ContentKind = iota
	// ContentNode means the node wraps exactly one child node.
	ContentNode
	// ContentList means the node carries an ordered list of children.
	ContentList
	// ContentBytes means the node carries raw bytes.
	ContentBytes
)

// String returns a short name for the kind.
func (k ContentKind) String() string {
	switch k {
	case ContentNone:
		return "none"
	case ContentNode:
		return "node"
	case ContentList:
		return "list"
	case ContentBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Content is the body of a Node. Only the field selected by Kind is
// meaningful.
type Content struct {
	Kind  ContentKind
	Node  *Node
	List  []Node
	Bytes []byte
}

// Node is one element of the binary XML tree.
type Node struct {
	Tag     string
	Attrs   map[string]string
	Content Content
}

// NewNode returns a node without content.
func NewNode(tag string, attrs map[string]string) Node {
	return Node{Tag: tag, Attrs: attrs}
}

// NewBytesNode returns a node carrying raw bytes.
func NewBytesNode(tag string, attrs map[string]string, data []byte) Node {
	return Node{Tag: tag, Attrs: attrs, Content: Content{Kind: ContentBytes, Bytes: data}}
}

// NewListNode returns a node carrying an ordered list of children.
func NewListNode(tag string, attrs map[string]string, children ...Node) Node {
	return Node{Tag: tag, Attrs: attrs, Content: Content{Kind: ContentList, List: children}}
}

// NewParentNode returns a node wrapping a single child.
func NewParentNode(tag string, attrs map[string]string, child Node) Node {
	return Node{Tag: tag, Attrs: attrs, Content: Content{Kind: ContentNode, Node: &child}}
}

// Attr returns the value of the named attribute.
func (n Node) Attr(key string) (string, bool) {
	v, ok := n.Attrs[key]
	return v, ok
}

// AttrJID parses the named attribute as a JID.
func (n Node) AttrJID(key string) (types.JID, bool) {
	v, ok := n.Attrs[key]
	if !ok {
		return types.JID{}, false
	}
	jid, err := types.ParseJID(v)
	if err != nil {
		return types.JID{}, false
	}
	return jid, true
}

// Children returns the child nodes regardless of whether the content is a
// single node or a list.
func (n Node) Children() []Node {
	switch n.Content.Kind {
	case ContentNode:
		if n.Content.Node == nil {
			return nil
		}
		return []Node{*n.Content.Node}
	case ContentList:
		return n.Content.List
	default:
		return nil
	}
}

// ChildByTag returns the first direct child with the given tag.
func (n Node) ChildByTag(tag string) (Node, bool) {
	for _, child := range n.Children() {
		if child.Tag == tag {
			return child, true
		}
	}
	return Node{}, false
}

// ChildrenByTag returns every direct child with the given tag.
func (n Node) ChildrenByTag(tag string) []Node {
	var out []Node
	for _, child := range n.Children() {
		if child.Tag == tag {
			out = append(out, child)
		}
	}
	return out
}

// Equal reports structural equality. Nil and empty attribute maps, byte
// slices and lists compare equal.
func (n Node) Equal(other Node) bool {
	if n.Tag != other.Tag || len(n.Attrs) != len(other.Attrs) {
		return false
	}
	for k, v := range n.Attrs {
		ov, ok := other.Attrs[k]
		if !ok || ov != v {
			return false
		}
	}
	return n.Content.Equal(other.Content)
}

// Equal reports structural equality of two contents.
func (c Content) Equal(other Content) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ContentNode:
		if c.Node == nil || other.Node == nil {
			return c.Node == other.Node
		}
		return c.Node.Equal(*other.Node)
	case ContentList:
		if len(c.List) != len(other.List) {
			return false
		}
		for i := range c.List {
			if !c.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case ContentBytes:
		return bytes.Equal(c.Bytes, other.Bytes)
	default:
		return true
	}
}
