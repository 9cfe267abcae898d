// Package repository keeps versioned templates in a hierarchical store and
// mirrors the store's namespace in an in-memory trie.
//
// Every mutation goes to the store first; the trie is only touched after the
// store call succeeded.  Conflicts are decided by the store alone.  A mutation
// holds its path from the store call until the trie is updated, so mutations
// of the same path mirror in the order the store applied them.  Once
// Initialize has run, reads are answered from the trie and fall back to the
// store on a miss.  Fallback reads never populate the trie.
package repository

import (
	"errors"
	"fmt"
	p "path"
	"sort"
	"sync"

	"github.com/golang/glog"
	"github.com/infradash/templates/pkg/store"
	"github.com/infradash/templates/pkg/template"
	"github.com/infradash/templates/pkg/trie"
	"golang.org/x/net/context"
)

type Repository struct {
	store store.Store
	codec template.Codec

	// Version mutations hold mutations for reading plus their own path.
	// Subtree deletes and Initialize hold mutations exclusively.
	mutations sync.RWMutex
	paths     *pathLocks

	// Guards trie and initialized.
	lock        sync.RWMutex
	trie        *trie.Trie
	initialized bool
}

func New(s store.Store, root string) *Repository {
	return &Repository{
		store: s,
		codec: template.NewCodec(root),
		paths: newPathLocks(),
		trie:  trie.New(),
	}
}

func (this *Repository) Codec() template.Codec {
	return this.codec
}

func (this *Repository) Initialized() bool {
	this.lock.RLock()
	defer this.lock.RUnlock()
	return this.initialized
}

func (this *Repository) classify(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNodeExists):
		return fmt.Errorf("%w: op=%s path=%s", ErrAlreadyExists, op, path)
	case errors.Is(err, store.ErrNotExist):
		return fmt.Errorf("%w: op=%s path=%s", ErrNotFound, op, path)
	}
	return &StoreError{Op: op, Path: path, Err: err}
}

func (this *Repository) lockPath(path string) func() {
	this.mutations.RLock()
	unlock := this.paths.Lock(path)
	return func() {
		unlock()
		this.mutations.RUnlock()
	}
}

func (this *Repository) lockAll() func() {
	this.mutations.Lock()
	return this.mutations.Unlock
}

func (this *Repository) mirror(f func(*trie.Trie)) {
	this.lock.Lock()
	defer this.lock.Unlock()
	f(this.trie)
}

// cached runs f against the trie only when it is authoritative.
func (this *Repository) cached(f func(*trie.Trie) bool) bool {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if !this.initialized {
		return false
	}
	return f(this.trie)
}

// Initialize rebuilds the trie from a full walk of the store below the root.
// An empty or missing root leaves the trie empty.  Must finish before any
// other call is made.
func (this *Repository) Initialize(ctx context.Context) error {
	defer this.lockAll()()

	fresh := trie.New()
	err := store.Walk(ctx, this.store, this.codec.Root,
		func(path string, value []byte, children []string) error {
			if len(children) == 0 && len(value) > 0 {
				fresh.Insert(path, value)
			} else {
				fresh.Insert(path, nil)
			}
			return nil
		})
	if err != nil {
		return this.classify("initialize", this.codec.Root, err)
	}

	this.lock.Lock()
	this.trie = fresh
	this.initialized = true
	this.lock.Unlock()

	glog.Infoln("repository-initialized:", "root=", this.codec.Root, "nodes=", fresh.Len(),
		"versions=", len(fresh.Leafs(this.codec.Root)))
	return nil
}

// Create stores a new version of the template and returns its version.  Fails
// with ErrAlreadyExists if identical content is already stored under the id.
// The body of t is normalized in place, so t equals what Read returns.
func (this *Repository) Create(ctx context.Context, t *template.Template) (template.Version, error) {
	if t == nil || t.Id == "" {
		return "", ErrNoTemplate
	}
	if err := t.Normalize(); err != nil {
		return "", err
	}
	path, version, buff, err := this.codec.StorePath(t)
	if err != nil {
		return "", err
	}
	defer this.lockPath(path)()

	if err := this.store.Create(ctx, path, buff); err != nil {
		return "", this.classify("create", path, err)
	}
	this.mirror(func(tr *trie.Trie) {
		tr.Insert(path, buff)
	})
	glog.Infoln("template-created:", "id=", t.Id, "version=", version)
	return version, nil
}

// Store writes the template like Create, except that an existing identical
// version counts as success.  For bulk writers such as migrations.
func (this *Repository) Store(ctx context.Context, t *template.Template) (template.Version, error) {
	if t == nil || t.Id == "" {
		return "", ErrNoTemplate
	}
	if err := t.Normalize(); err != nil {
		return "", err
	}
	path, version, buff, err := this.codec.StorePath(t)
	if err != nil {
		return "", err
	}
	defer this.lockPath(path)()

	err = this.store.Create(ctx, path, buff)
	switch {
	case err == nil, errors.Is(err, store.ErrNodeExists):
	default:
		return "", this.classify("store", path, err)
	}
	this.mirror(func(tr *trie.Trie) {
		tr.Insert(path, buff)
	})
	return version, nil
}

// Read returns the template stored at the given version.  The hint supplies
// the id, which is not part of the stored bytes.
func (this *Repository) Read(ctx context.Context, hint *template.Template, version template.Version) (*template.Template, error) {
	if hint == nil || hint.Id == "" {
		return nil, &template.DecodeError{Err: template.ErrNoHint}
	}
	path := this.codec.VersionPath(hint.Id, version)
	if !template.IsVersion(string(version)) {
		return nil, fmt.Errorf("%w: op=read path=%s", ErrNotFound, path)
	}

	var buff []byte
	hit := this.cached(func(tr *trie.Trie) bool {
		data, has := tr.Get(path)
		buff = data
		return has
	})
	if !hit {
		data, err := this.store.Read(ctx, path)
		if err != nil {
			return nil, this.classify("read", path, err)
		}
		buff = data
	}
	return template.Decode(buff, hint)
}

// Delete removes one version.  A version that is not there is not an error.
func (this *Repository) Delete(ctx context.Context, id template.PathId, version template.Version) error {
	if !template.IsVersion(string(version)) {
		return nil
	}
	path := this.codec.VersionPath(id, version)
	defer this.lockPath(path)()

	if err := this.store.Delete(ctx, path, false); err != nil {
		return this.classify("delete", path, err)
	}
	this.mirror(func(tr *trie.Trie) {
		tr.Delete(path)
	})
	glog.Infoln("template-version-deleted:", "id=", id, "version=", version)
	return nil
}

// DeleteAll removes the template base and everything stored below it.  An id
// that was never created is not an error.
func (this *Repository) DeleteAll(ctx context.Context, id template.PathId) error {
	path := this.codec.BasePath(id)
	defer this.lockAll()()

	if err := this.store.Delete(ctx, path, true); err != nil {
		return this.classify("delete-all", path, err)
	}
	this.mirror(func(tr *trie.Trie) {
		tr.Delete(path)
	})
	glog.Infoln("template-deleted:", "id=", id)
	return nil
}

// Contents lists the current versions of a template.  Fails with ErrNotFound
// only if the template base was never created; a base left with no versions
// gives an empty list.
func (this *Repository) Contents(ctx context.Context, id template.PathId) ([]template.Version, error) {
	path := this.codec.BasePath(id)

	var children []string
	hit := this.cached(func(tr *trie.Trie) bool {
		list, has := tr.Versions(path)
		children = list
		return has
	})
	if !hit {
		list, err := this.store.Children(ctx, path)
		if err != nil {
			return nil, this.classify("contents", path, err)
		}
		children = list
	}

	versions := make([]template.Version, 0, len(children))
	for _, child := range children {
		if v, err := template.ParseVersion(p.Base(child)); err == nil {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

// Exists reports whether the template base is present, with or without
// versions.  Store failures are logged and reported as false.
func (this *Repository) Exists(ctx context.Context, id template.PathId) bool {
	path := this.codec.BasePath(id)
	if this.cached(func(tr *trie.Trie) bool { return tr.Exists(path) }) {
		return true
	}
	exists, err := this.store.Exists(ctx, path)
	if err != nil {
		exceptionEvent(err, "exists", "path=", path)
		return false
	}
	return exists
}

// ExistsVersion reports whether that one version is present.
func (this *Repository) ExistsVersion(ctx context.Context, id template.PathId, version template.Version) bool {
	if !template.IsVersion(string(version)) {
		return false
	}
	path := this.codec.VersionPath(id, version)
	if this.cached(func(tr *trie.Trie) bool { _, has := tr.Get(path); return has }) {
		return true
	}
	exists, err := this.store.Exists(ctx, path)
	if err != nil {
		exceptionEvent(err, "exists-version", "path=", path)
		return false
	}
	return exists
}

// Ids lists every known template: each node holding versions, and each
// version-less node left behind after its versions were deleted.
func (this *Repository) Ids(ctx context.Context) ([]template.PathId, error) {
	found := map[template.PathId]bool{}
	collect := func(path string, value []byte, leaf bool) {
		switch {
		case !leaf:
		case len(value) > 0 && template.IsVersion(p.Base(path)):
			if id, ok := this.codec.PathIdOf(p.Dir(path)); ok {
				found[id] = true
			}
		default:
			if id, ok := this.codec.PathIdOf(path); ok {
				found[id] = true
			}
		}
	}

	hit := this.cached(func(tr *trie.Trie) bool {
		tr.Visit(this.codec.Root, func(path string, value []byte, leaf bool) bool {
			collect(path, value, leaf)
			return true
		})
		return true
	})
	if !hit {
		err := store.Walk(ctx, this.store, this.codec.Root,
			func(path string, value []byte, children []string) error {
				if path != this.codec.Root {
					collect(path, value, len(children) == 0)
				}
				return nil
			})
		if err != nil {
			return nil, this.classify("ids", this.codec.Root, err)
		}
	}

	ids := make([]template.PathId, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
