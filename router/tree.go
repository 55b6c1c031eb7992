package router

import (
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
)

// treeNode is one component in the diagnostic forest. A nil level means
// the node exists only as an intermediate prefix of a deeper rule.
type treeNode struct {
	name     string
	level    *Level
	children map[string]*treeNode
}

func (n *treeNode) child(name string) *treeNode {
	if n.children == nil {
		n.children = make(map[string]*treeNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &treeNode{name: name}
		n.children[name] = c
	}
	return c
}

func (n *treeNode) sortedChildren() []*treeNode {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*treeNode, 0, len(names))
	for _, name := range names {
		out = append(out, n.children[name])
	}
	return out
}

// RenderTree renders the router's rule set as a human-facing forest.
// Each path's last token is the node label; a node shows its severity
// only when that exact path holds an explicit rule; siblings are ordered
// by name. The output is advisory only, no program behavior depends on
// its layout.
func RenderTree(r *Router) string {
	root := &treeNode{}
	for _, key := range r.sortedRuleKeys() {
		level := r.rules[key]
		node := root
		for _, tok := range strings.Split(key, ".") {
			node = node.child(tok)
		}
		l := level
		node.level = &l
	}

	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedLight)
	for _, top := range root.sortedChildren() {
		appendNode(lw, top)
	}
	return lw.Render()
}

// appendNode writes one node and its descendants into the list writer.
func appendNode(lw list.Writer, node *treeNode) {
	label := node.name
	if node.level != nil {
		label += " (" + node.level.String() + ")"
	}
	lw.AppendItem(label)
	children := node.sortedChildren()
	if len(children) == 0 {
		return
	}
	lw.Indent()
	for _, child := range children {
		appendNode(lw, child)
	}
	lw.UnIndent()
}
