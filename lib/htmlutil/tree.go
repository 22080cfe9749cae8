package htmlutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// The functions below are pure traversals over *html.Node so that
// locator and ancestor-search logic stays independent of the
// selection library layered on top.

// FollowingText returns the first non-blank text content found among
// the siblings after node.
func FollowingText(node *html.Node) string {
	if node == nil {
		return ""
	}
	for sibling := node.NextSibling; sibling != nil; sibling = sibling.NextSibling {
		var text string
		if sibling.Type == html.TextNode {
			text = sibling.Data
		} else {
			text = GetText(sibling)
		}
		if strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

// ClosestAncestor walks up from node and returns the nearest ancestor
// element whose tag is one of names, or nil.
func ClosestAncestor(node *html.Node, names ...string) *html.Node {
	for parent := nodeParent(node); parent != nil; parent = parent.Parent {
		if parent.Type != html.ElementNode {
			continue
		}
		for _, name := range names {
			if parent.Data == name {
				return parent
			}
		}
	}
	return nil
}

func nodeParent(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}
	return node.Parent
}

// FindText depth-first searches the subtree for the first text node
// matching re.
func FindText(node *html.Node, re *regexp.Regexp) *html.Node {
	if node == nil {
		return nil
	}
	if node.Type == html.TextNode && re.MatchString(node.Data) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := FindText(child, re); found != nil {
			return found
		}
	}
	return nil
}

// HasAttrValue reports whether the element carries an attribute whose
// space-separated value list contains want (class lists, mostly).
func HasAttrValue(node *html.Node, key, want string) bool {
	if node == nil {
		return false
	}
	for _, attr := range node.Attr {
		if attr.Key != key {
			continue
		}
		for _, v := range strings.Fields(attr.Val) {
			if v == want {
				return true
			}
		}
	}
	return false
}
