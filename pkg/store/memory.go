package store

import (
	p "path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/context"
)

type znode struct {
	value    []byte
	children map[string]*znode
}

func newZnode(value []byte) *znode {
	return &znode{value: value, children: map[string]*znode{}}
}

// Memory is an in-process Store with the same node semantics as ZooKeeper:
// the root always exists, and values are copied in and out.
type Memory struct {
	lock   sync.RWMutex
	root   *znode
	closed bool
}

func NewMemory() *Memory {
	return &Memory{root: newZnode([]byte{})}
}

func split(path string) []string {
	clean := strings.Trim(p.Clean("/"+path), "/")
	if clean == "" {
		return nil
	}
	return strings.Split(clean, "/")
}

func (this *Memory) find(path string) *znode {
	n := this.root
	for _, s := range split(path) {
		child, has := n.children[s]
		if !has {
			return nil
		}
		n = child
	}
	return n
}

func (this *Memory) check(ctx context.Context) error {
	if this.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (this *Memory) Create(ctx context.Context, path string, value []byte) error {
	this.lock.Lock()
	defer this.lock.Unlock()
	if err := this.check(ctx); err != nil {
		return err
	}
	segs := split(path)
	if len(segs) == 0 {
		return ErrNodeExists
	}
	n := this.root
	for _, s := range segs[:len(segs)-1] {
		child, has := n.children[s]
		if !has {
			child = newZnode([]byte{})
			n.children[s] = child
		}
		n = child
	}
	last := segs[len(segs)-1]
	if _, has := n.children[last]; has {
		return ErrNodeExists
	}
	n.children[last] = newZnode(append([]byte{}, value...))
	return nil
}

func (this *Memory) Read(ctx context.Context, path string) ([]byte, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(ctx); err != nil {
		return nil, err
	}
	n := this.find(path)
	if n == nil {
		return nil, ErrNotExist
	}
	return append([]byte{}, n.value...), nil
}

func (this *Memory) Children(ctx context.Context, path string) ([]string, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(ctx); err != nil {
		return nil, err
	}
	n := this.find(path)
	if n == nil {
		return nil, ErrNotExist
	}
	base := p.Clean("/" + path)
	list := make([]string, 0, len(n.children))
	for name := range n.children {
		list = append(list, p.Join(base, name))
	}
	sort.Strings(list)
	return list, nil
}

func (this *Memory) Exists(ctx context.Context, path string) (bool, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(ctx); err != nil {
		return false, err
	}
	return this.find(path) != nil, nil
}

func (this *Memory) Delete(ctx context.Context, path string, recursive bool) error {
	this.lock.Lock()
	defer this.lock.Unlock()
	if err := this.check(ctx); err != nil {
		return err
	}
	segs := split(path)
	if len(segs) == 0 {
		if !recursive && len(this.root.children) > 0 {
			return ErrNotEmpty
		}
		this.root.children = map[string]*znode{}
		return nil
	}
	parent := this.find(strings.Join(segs[:len(segs)-1], "/"))
	if parent == nil {
		return nil
	}
	last := segs[len(segs)-1]
	n, has := parent.children[last]
	if !has {
		return nil
	}
	if !recursive && len(n.children) > 0 {
		return ErrNotEmpty
	}
	delete(parent.children, last)
	return nil
}

func (this *Memory) Close() error {
	this.lock.Lock()
	defer this.lock.Unlock()
	this.closed = true
	return nil
}
