// Package trie holds an in-memory mirror of a hierarchical key space.  Edges are
// path segments; nodes that carry a payload are version leaves, nodes without
// one are namespace or template base markers.
//
// A Trie does no locking of its own.  Callers that share one across goroutines
// must serialize Insert and Delete against everything else.
package trie

import (
	p "path"
	"sort"
	"strings"
)

type node struct {
	name     string
	children map[string]*node
	data     []byte
}

func newNode(name string) *node {
	return &node{name: name, children: map[string]*node{}}
}

func (this *node) leaf() bool {
	return len(this.children) == 0
}

func (this *node) hasData() bool {
	return this.data != nil
}

type Trie struct {
	root *node
}

func New() *Trie {
	return &Trie{root: newNode("")}
}

func segments(path string) []string {
	clean := strings.Trim(p.Clean("/"+path), "/")
	if clean == "" {
		return nil
	}
	return strings.Split(clean, "/")
}

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func (this *Trie) find(path string) *node {
	n := this.root
	for _, s := range segments(path) {
		child, has := n.children[s]
		if !has {
			return nil
		}
		n = child
	}
	return n
}

// Insert creates or overwrites the node at path, materializing missing
// intermediate nodes without payload.  A nil payload marks the node as a plain
// namespace node.
func (this *Trie) Insert(path string, data []byte) {
	n := this.root
	for _, s := range segments(path) {
		child, has := n.children[s]
		if !has {
			child = newNode(s)
			n.children[s] = child
		}
		n = child
	}
	if data == nil {
		n.data = nil
		return
	}
	n.data = append(make([]byte, 0, len(data)), data...)
}

func (this *Trie) Exists(path string) bool {
	return this.find(path) != nil
}

// Get returns a copy of the payload at path.  The bool is false when there is
// no node there or the node carries no payload.
func (this *Trie) Get(path string) ([]byte, bool) {
	n := this.find(path)
	if n == nil || !n.hasData() {
		return nil, false
	}
	return append(make([]byte, 0, len(n.data)), n.data...), true
}

// Children lists the immediate child paths, sorted.  The bool is false when the
// node does not exist, which is different from an existing node with no
// children (empty, true).  Payload-carrying children are left out unless
// includeVersions is set.
func (this *Trie) Children(path string, includeVersions bool) ([]string, bool) {
	return this.children(path, func(child *node) bool {
		return includeVersions || !child.hasData()
	})
}

// Versions lists only the payload-carrying leaf children of path.
func (this *Trie) Versions(path string) ([]string, bool) {
	return this.children(path, func(child *node) bool {
		return child.hasData() && child.leaf()
	})
}

func (this *Trie) children(path string, accept func(*node) bool) ([]string, bool) {
	n := this.find(path)
	if n == nil {
		return nil, false
	}
	base := p.Clean("/" + path)
	list := make([]string, 0, len(n.children))
	for name, child := range n.children {
		if accept(child) {
			list = append(list, join(base, name))
		}
	}
	sort.Strings(list)
	return list, true
}

// Leafs collects, depth first, every node under prefix that has no children.
// The prefix itself is not included.
func (this *Trie) Leafs(prefix string) []string {
	list := []string{}
	n := this.find(prefix)
	if n == nil {
		return list
	}
	var visit func(string, *node)
	visit = func(path string, at *node) {
		for name, child := range at.children {
			cp := join(path, name)
			if child.leaf() {
				list = append(list, cp)
			} else {
				visit(cp, child)
			}
		}
	}
	visit(p.Clean("/"+prefix), n)
	sort.Strings(list)
	return list
}

// Visit calls fn for every node strictly under prefix, parents before children.
// Returning false from fn skips that node's subtree.
func (this *Trie) Visit(prefix string, fn func(path string, data []byte, leaf bool) bool) {
	n := this.find(prefix)
	if n == nil {
		return
	}
	var visit func(string, *node)
	visit = func(path string, at *node) {
		names := make([]string, 0, len(at.children))
		for name := range at.children {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child := at.children[name]
			cp := join(path, name)
			if fn(cp, child.data, child.leaf()) {
				visit(cp, child)
			}
		}
	}
	visit(p.Clean("/"+prefix), n)
}

// Delete removes the node at path along with its subtree.  Ancestors are left
// in place even when they end up with no children.  Deleting the root clears
// the whole trie.  Returns false if there was nothing at path.
func (this *Trie) Delete(path string) bool {
	segs := segments(path)
	if len(segs) == 0 {
		had := !this.root.leaf()
		this.root = newNode("")
		return had
	}
	parent := this.find(strings.Join(segs[:len(segs)-1], "/"))
	if parent == nil {
		return false
	}
	last := segs[len(segs)-1]
	if _, has := parent.children[last]; !has {
		return false
	}
	delete(parent.children, last)
	return true
}

// Len counts all nodes below the root.
func (this *Trie) Len() int {
	count := 0
	this.Visit("/", func(string, []byte, bool) bool {
		count++
		return true
	})
	return count
}
