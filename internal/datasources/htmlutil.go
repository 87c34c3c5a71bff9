package datasources

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// parseDoc parses an HTML document into its node tree.
func parseDoc(data []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(data))
}

// flatten returns every node of the tree in document order, so "the next
// table after this anchor" becomes a simple index scan.
func flatten(root *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		nodes = append(nodes, n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return nodes
}

// attrVal returns the value of the named attribute, or "".
func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether the element carries the CSS class.
func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrVal(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// isElement reports whether n is an element with the given tag.
func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// nodeText returns the concatenated, trimmed text content of the subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// descendants returns the subtree's elements with the given tag, in
// document order.
func descendants(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for _, node := range flatten(n) {
		if isElement(node, tag) {
			out = append(out, node)
		}
	}
	return out
}

// nextElementAfter returns the first element with the given tag appearing
// after index from in the flattened node list.
func nextElementAfter(nodes []*html.Node, from int, tag string) *html.Node {
	for i := from + 1; i < len(nodes); i++ {
		if isElement(nodes[i], tag) {
			return nodes[i]
		}
	}
	return nil
}

// indexOfID returns the flattened index of the element with the given id,
// or -1.
func indexOfID(nodes []*html.Node, id string) int {
	for i, n := range nodes {
		if n.Type == html.ElementNode && attrVal(n, "id") == id {
			return i
		}
	}
	return -1
}
