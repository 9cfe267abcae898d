package repository

import (
	"errors"
	"fmt"
	"github.com/infradash/templates/pkg/store"
	"github.com/infradash/templates/pkg/template"
	"golang.org/x/net/context"
	. "gopkg.in/check.v1"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestRepository(t *testing.T) { TestingT(t) }

type TestSuiteRepository struct {
}

var _ = Suite(&TestSuiteRepository{})

func (suite *TestSuiteRepository) SetUpSuite(c *C) {
}

func (suite *TestSuiteRepository) TearDownSuite(c *C) {
}

var ctx = context.Background()

func job(id string, instances int) *template.Template {
	return &template.Template{
		Id:          template.MustPathId(id),
		Description: "batch job",
		Labels:      map[string]string{"owner": "eng"},
		Body: map[string]interface{}{
			"cmd":       "sleep 10",
			"instances": float64(instances),
		},
	}
}

// Both an uninitialized and an initialized repository must behave the same.
func repositories(c *C) map[string]*Repository {
	initialized := New(store.NewMemory(), template.DefaultRoot)
	c.Assert(initialized.Initialize(ctx), IsNil)
	return map[string]*Repository{
		"store-only":  New(store.NewMemory(), template.DefaultRoot),
		"initialized": initialized,
	}
}

func sortVersions(v []template.Version) []template.Version {
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	return v
}

func (suite *TestSuiteRepository) TestCreateThenRead(c *C) {
	for name, r := range repositories(c) {
		t := job("/eng/dev/foo", 1)
		v, err := r.Create(ctx, t)
		c.Assert(err, IsNil, Commentf(name))

		expected, err := r.Codec().Version(t)
		c.Assert(err, IsNil)
		c.Assert(v, Equals, expected)

		read, err := r.Read(ctx, template.Hint(t.Id), v)
		c.Assert(err, IsNil, Commentf(name))
		c.Assert(read, DeepEquals, t, Commentf(name))

		c.Assert(r.Exists(ctx, t.Id), Equals, true)
		c.Assert(r.ExistsVersion(ctx, t.Id, v), Equals, true)
	}
}

func (suite *TestSuiteRepository) TestCreateIdenticalContentFails(c *C) {
	for name, r := range repositories(c) {
		t := job("/eng/dev/foo", 1)
		v1, err := r.Create(ctx, t)
		c.Assert(err, IsNil)

		_, err = r.Create(ctx, job("/eng/dev/foo", 1))
		c.Assert(errors.Is(err, ErrAlreadyExists), Equals, true, Commentf(name))
		c.Assert(errors.Is(err, ErrStoreUnavailable), Equals, false)

		v2, err := r.Create(ctx, job("/eng/dev/foo", 2))
		c.Assert(err, IsNil)
		c.Assert(v2, Not(Equals), v1)

		versions, err := r.Contents(ctx, t.Id)
		c.Assert(err, IsNil, Commentf(name))
		c.Assert(sortVersions(versions), DeepEquals, sortVersions([]template.Version{v1, v2}))

		// Same content under another id hashes to the same version.
		v3, err := r.Create(ctx, job("/eng/prod/foo", 1))
		c.Assert(err, IsNil)
		c.Assert(v3, Equals, v1)
	}
}

func (suite *TestSuiteRepository) TestDeleteIsIdempotent(c *C) {
	for name, r := range repositories(c) {
		id := template.MustPathId("/never/created")
		c.Assert(r.Delete(ctx, id, template.Version("0123456789abcdef")), IsNil, Commentf(name))
		c.Assert(r.Delete(ctx, id, template.Version("not-a-version")), IsNil)
		c.Assert(r.DeleteAll(ctx, id), IsNil)

		t := job("/eng/dev/foo", 1)
		v, err := r.Create(ctx, t)
		c.Assert(err, IsNil)
		c.Assert(r.Delete(ctx, t.Id, v), IsNil)
		c.Assert(r.Delete(ctx, t.Id, v), IsNil)
		c.Assert(r.ExistsVersion(ctx, t.Id, v), Equals, false)
	}
}

func (suite *TestSuiteRepository) TestContentsAfterLastVersionDeleted(c *C) {
	for name, r := range repositories(c) {
		t := job("/eng/dev/foo", 1)
		v, err := r.Create(ctx, t)
		c.Assert(err, IsNil)
		c.Assert(r.Delete(ctx, t.Id, v), IsNil)

		versions, err := r.Contents(ctx, t.Id)
		c.Assert(err, IsNil, Commentf(name))
		c.Assert(versions, DeepEquals, []template.Version{})
		c.Assert(r.Exists(ctx, t.Id), Equals, true)

		_, err = r.Contents(ctx, template.MustPathId("/never/created"))
		c.Assert(errors.Is(err, ErrNotFound), Equals, true, Commentf(name))
	}
}

func (suite *TestSuiteRepository) TestLifecycle(c *C) {
	for name, r := range repositories(c) {
		id := template.MustPathId("/eng/dev/foo")
		c.Assert(r.Exists(ctx, id), Equals, false, Commentf(name))

		v, err := r.Create(ctx, job(id.String(), 1))
		c.Assert(err, IsNil)
		c.Assert(r.Exists(ctx, id), Equals, true)
		c.Assert(r.ExistsVersion(ctx, id, v), Equals, true)
		c.Assert(r.ExistsVersion(ctx, id, template.Version("0123456789abcdef")), Equals, false)
		c.Assert(r.ExistsVersion(ctx, id, template.Version("bogus")), Equals, false)

		c.Assert(r.DeleteAll(ctx, id), IsNil)
		c.Assert(r.Exists(ctx, id), Equals, false, Commentf(name))
		c.Assert(r.ExistsVersion(ctx, id, v), Equals, false)
		_, err = r.Contents(ctx, id)
		c.Assert(errors.Is(err, ErrNotFound), Equals, true)

		// The parent namespace survives.
		parent, _ := id.Parent()
		c.Assert(r.Exists(ctx, parent), Equals, true)
	}
}

func (suite *TestSuiteRepository) TestReadErrors(c *C) {
	for name, r := range repositories(c) {
		id := template.MustPathId("/eng/dev/foo")
		_, err := r.Read(ctx, template.Hint(id), template.Version("0123456789abcdef"))
		c.Assert(errors.Is(err, ErrNotFound), Equals, true, Commentf(name))

		_, err = r.Read(ctx, template.Hint(id), template.Version("dev"))
		c.Assert(errors.Is(err, ErrNotFound), Equals, true)

		_, err = r.Read(ctx, nil, template.Version("0123456789abcdef"))
		c.Assert(errors.Is(err, template.ErrDecode), Equals, true)
	}

	// Malformed bytes at a version path.
	m := store.NewMemory()
	r := New(m, template.DefaultRoot)
	id := template.MustPathId("/eng/dev/foo")
	v := template.Version("0123456789abcdef")
	c.Assert(m.Create(ctx, r.Codec().VersionPath(id, v), []byte{0xff, 0x01}), IsNil)

	_, err := r.Read(ctx, template.Hint(id), v)
	c.Assert(errors.Is(err, template.ErrDecode), Equals, true)

	c.Assert(r.Initialize(ctx), IsNil)
	_, err = r.Read(ctx, template.Hint(id), v)
	c.Assert(errors.Is(err, template.ErrDecode), Equals, true)
}

func (suite *TestSuiteRepository) TestInitializeRebuildsTrie(c *C) {
	m := store.NewMemory()
	writer := New(m, template.DefaultRoot)

	ids := []string{"/a", "/a/b/c", "/x/y/z/w", "/eng/dev/foo", "/eng/dev/bar"}
	paths := []string{}
	encoded := map[string][]byte{}
	for i, id := range ids {
		for j := 1; j <= 2; j++ {
			t := job(id, i*10+j)
			path, _, buff, err := writer.Codec().StorePath(t)
			c.Assert(err, IsNil)
			_, err = writer.Create(ctx, t)
			c.Assert(err, IsNil)
			paths = append(paths, path)
			encoded[path] = buff
		}
	}
	sort.Strings(paths)

	r := New(m, template.DefaultRoot)
	c.Assert(r.Initialized(), Equals, false)
	c.Assert(r.Initialize(ctx), IsNil)
	c.Assert(r.Initialized(), Equals, true)

	c.Assert(r.trie.Leafs(template.DefaultRoot), DeepEquals, paths)
	for _, path := range paths {
		data, has := r.trie.Get(path)
		c.Assert(has, Equals, true)
		c.Assert(data, DeepEquals, encoded[path])
	}

	// "/a" is both a template and the ancestor of "/a/b/c".
	versions, err := r.Contents(ctx, template.MustPathId("/a"))
	c.Assert(err, IsNil)
	c.Assert(len(versions), Equals, 2)

	all, err := r.Ids(ctx)
	c.Assert(err, IsNil)
	c.Assert(all, DeepEquals, []template.PathId{"/a", "/a/b/c", "/eng/dev/bar", "/eng/dev/foo", "/x/y/z/w"})
}

func (suite *TestSuiteRepository) TestInitializeEmptyStore(c *C) {
	r := New(store.NewMemory(), template.DefaultRoot)
	c.Assert(r.Initialize(ctx), IsNil)
	c.Assert(r.trie.Len(), Equals, 0)
	c.Assert(r.trie.Leafs("/"), DeepEquals, []string{})

	ids, err := r.Ids(ctx)
	c.Assert(err, IsNil)
	c.Assert(ids, DeepEquals, []template.PathId{})

	// Root present but childless.
	m := store.NewMemory()
	c.Assert(m.Create(ctx, template.DefaultRoot, nil), IsNil)
	r = New(m, template.DefaultRoot)
	c.Assert(r.Initialize(ctx), IsNil)
	children, has := r.trie.Children(template.DefaultRoot, true)
	c.Assert(has, Equals, true)
	c.Assert(children, DeepEquals, []string{})
}

func (suite *TestSuiteRepository) TestIdsIncludesEmptyTemplates(c *C) {
	for name, r := range repositories(c) {
		v, err := r.Create(ctx, job("/eng/dev/foo", 1))
		c.Assert(err, IsNil)
		_, err = r.Create(ctx, job("/eng/dev/bar", 1))
		c.Assert(err, IsNil)
		c.Assert(r.Delete(ctx, template.MustPathId("/eng/dev/foo"), v), IsNil)

		ids, err := r.Ids(ctx)
		c.Assert(err, IsNil)
		c.Assert(ids, DeepEquals, []template.PathId{"/eng/dev/bar", "/eng/dev/foo"}, Commentf(name))
	}
}

func (suite *TestSuiteRepository) TestStoreToleratesExisting(c *C) {
	for name, r := range repositories(c) {
		t := job("/eng/dev/foo", 1)
		v1, err := r.Store(ctx, t)
		c.Assert(err, IsNil, Commentf(name))
		v2, err := r.Store(ctx, t)
		c.Assert(err, IsNil)
		c.Assert(v2, Equals, v1)

		_, err = r.Create(ctx, t)
		c.Assert(errors.Is(err, ErrAlreadyExists), Equals, true)

		_, err = r.Store(ctx, nil)
		c.Assert(err, Equals, ErrNoTemplate)
		_, err = r.Create(ctx, &template.Template{})
		c.Assert(err, Equals, ErrNoTemplate)
	}
}

func (suite *TestSuiteRepository) TestFallbackSeesOtherWriters(c *C) {
	m := store.NewMemory()
	r := New(m, template.DefaultRoot)
	c.Assert(r.Initialize(ctx), IsNil)

	// Written by another process after initialize.
	other := New(m, template.DefaultRoot)
	t := job("/eng/dev/foo", 1)
	v, err := other.Create(ctx, t)
	c.Assert(err, IsNil)

	c.Assert(r.Exists(ctx, t.Id), Equals, true)
	c.Assert(r.ExistsVersion(ctx, t.Id, v), Equals, true)
	read, err := r.Read(ctx, template.Hint(t.Id), v)
	c.Assert(err, IsNil)
	c.Assert(read, DeepEquals, t)

	// Fallback reads leave the trie alone.
	c.Assert(r.trie.Exists(r.Codec().BasePath(t.Id)), Equals, false)

	// The store, not the trie, decides conflicts.
	_, err = r.Create(ctx, t)
	c.Assert(errors.Is(err, ErrAlreadyExists), Equals, true)
}

type failingStore struct {
	store.Store
	err error
}

func (this *failingStore) Create(context.Context, string, []byte) error { return this.err }
func (this *failingStore) Delete(context.Context, string, bool) error  { return this.err }
func (this *failingStore) Read(context.Context, string) ([]byte, error) {
	return nil, this.err
}
func (this *failingStore) Children(context.Context, string) ([]string, error) {
	return nil, this.err
}
func (this *failingStore) Exists(context.Context, string) (bool, error) {
	return false, this.err
}

func (suite *TestSuiteRepository) TestStoreFailuresLeaveTrieUntouched(c *C) {
	m := store.NewMemory()
	r := New(m, template.DefaultRoot)
	c.Assert(r.Initialize(ctx), IsNil)

	existing := job("/eng/dev/foo", 1)
	v, err := r.Create(ctx, existing)
	c.Assert(err, IsNil)
	before := r.trie.Len()

	down := errors.New("connection-lost")
	r.store = &failingStore{Store: m, err: down}

	_, err = r.Create(ctx, job("/eng/dev/foo", 2))
	c.Assert(errors.Is(err, ErrStoreUnavailable), Equals, true)
	c.Assert(errors.Is(err, down), Equals, true)
	var se *StoreError
	c.Assert(errors.As(err, &se), Equals, true)
	c.Assert(se.Op, Equals, "create")

	c.Assert(errors.Is(r.Delete(ctx, existing.Id, v), ErrStoreUnavailable), Equals, true)
	c.Assert(errors.Is(r.DeleteAll(ctx, existing.Id), ErrStoreUnavailable), Equals, true)
	c.Assert(r.trie.Len(), Equals, before)
	c.Assert(r.ExistsVersion(ctx, existing.Id, v), Equals, true)

	// Trie hits do not need the store.
	read, err := r.Read(ctx, template.Hint(existing.Id), v)
	c.Assert(err, IsNil)
	c.Assert(read, DeepEquals, existing)

	// Misses fall through to the failing store.
	c.Assert(r.Exists(ctx, template.MustPathId("/other")), Equals, false)
	_, err = r.Contents(ctx, template.MustPathId("/other"))
	c.Assert(errors.Is(err, ErrStoreUnavailable), Equals, true)

	fresh := New(&failingStore{Store: m, err: down}, template.DefaultRoot)
	c.Assert(errors.Is(fresh.Initialize(ctx), ErrStoreUnavailable), Equals, true)
	c.Assert(fresh.Initialized(), Equals, false)
	_, err = fresh.Ids(ctx)
	c.Assert(errors.Is(err, ErrStoreUnavailable), Equals, true)
}

func (suite *TestSuiteRepository) TestConcurrentCreates(c *C) {
	r := New(store.Limit(store.NewMemory(), 4), template.DefaultRoot)
	c.Assert(r.Initialize(ctx), IsNil)

	var wg sync.WaitGroup
	var lock sync.Mutex
	succeeded, conflicts := 0, 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create(ctx, job("/eng/dev/foo", 1))
			lock.Lock()
			defer lock.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyExists):
				conflicts++
			default:
				c.Error(err)
			}
		}()
	}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Create(ctx, job(fmt.Sprintf("/eng/team%d/job", i%4), 100+i))
			c.Check(err, IsNil)
		}(i)
	}
	wg.Wait()

	c.Assert(succeeded, Equals, 1)
	c.Assert(conflicts, Equals, 15)

	versions, err := r.Contents(ctx, template.MustPathId("/eng/dev/foo"))
	c.Assert(err, IsNil)
	c.Assert(len(versions), Equals, 1)
	for i := 0; i < 4; i++ {
		versions, err := r.Contents(ctx, template.MustPathId(fmt.Sprintf("/eng/team%d/job", i)))
		c.Assert(err, IsNil)
		c.Assert(len(versions), Equals, 4)
	}

	// The trie matches a fresh rebuild from the store.
	rebuilt := New(r.store, template.DefaultRoot)
	c.Assert(rebuilt.Initialize(ctx), IsNil)
	c.Assert(r.trie.Leafs("/"), DeepEquals, rebuilt.trie.Leafs("/"))
	c.Assert(r.paths.Len(), Equals, 0)
}

// Runs during once, right after the first successful create reaches the store.
type interleavingStore struct {
	store.Store
	during func()
}

func (this *interleavingStore) Create(ctx context.Context, path string, value []byte) error {
	err := this.Store.Create(ctx, path, value)
	if err == nil && this.during != nil {
		during := this.during
		this.during = nil
		during()
	}
	return err
}

func (suite *TestSuiteRepository) TestDeleteDuringCreateWaitsForMirror(c *C) {
	for _, initialize := range []bool{false, true} {
		for _, op := range []string{"delete", "delete-all"} {
			comment := Commentf("initialized=%v op=%s", initialize, op)

			m := store.NewMemory()
			s := &interleavingStore{Store: m}
			r := New(s, template.DefaultRoot)
			if initialize {
				c.Assert(r.Initialize(ctx), IsNil)
			}
			t := job("/eng/dev/foo", 1)
			v, err := r.Codec().Version(t)
			c.Assert(err, IsNil)

			deleted := make(chan error, 1)
			s.during = func() {
				go func() {
					if op == "delete" {
						deleted <- r.Delete(ctx, t.Id, v)
					} else {
						deleted <- r.DeleteAll(ctx, t.Id)
					}
				}()
				// Give the delete a chance to get between the store write and
				// the mirror.
				select {
				case err := <-deleted:
					deleted <- err
				case <-time.After(50 * time.Millisecond):
				}
			}

			_, err = r.Create(ctx, t)
			c.Assert(err, IsNil, comment)
			c.Assert(<-deleted, IsNil, comment)

			inStore, err := m.Exists(ctx, r.Codec().VersionPath(t.Id, v))
			c.Assert(err, IsNil)
			c.Assert(inStore, Equals, false, comment)
			c.Assert(r.ExistsVersion(ctx, t.Id, v), Equals, false, comment)
			if op == "delete" {
				versions, err := r.Contents(ctx, t.Id)
				c.Assert(err, IsNil, comment)
				c.Assert(versions, DeepEquals, []template.Version{}, comment)
			} else {
				c.Assert(r.Exists(ctx, t.Id), Equals, false, comment)
			}
		}
	}
}

func (suite *TestSuiteRepository) TestIntegersAreNormalized(c *C) {
	for name, r := range repositories(c) {
		t := &template.Template{
			Id:   template.MustPathId("/eng/big"),
			Body: map[string]interface{}{"k": 3, "n": int64(1 << 53), "nested": []interface{}{int32(7)}},
		}
		v, err := r.Create(ctx, t)
		c.Assert(err, IsNil, Commentf(name))
		c.Assert(t.Body["k"], Equals, float64(3))

		read, err := r.Read(ctx, template.Hint(t.Id), v)
		c.Assert(err, IsNil)
		c.Assert(read, DeepEquals, t, Commentf(name))
		c.Assert(read.Body["nested"], DeepEquals, []interface{}{float64(7)})

		// Not representable exactly, so not stored at all.
		big := &template.Template{
			Id:   template.MustPathId("/eng/big"),
			Body: map[string]interface{}{"k": 3, "n": int64(1<<53 + 1)},
		}
		_, err = r.Create(ctx, big)
		c.Assert(errors.Is(err, template.ErrEncode), Equals, true, Commentf(name))

		versions, err := r.Contents(ctx, t.Id)
		c.Assert(err, IsNil)
		c.Assert(versions, DeepEquals, []template.Version{v})
	}
}

func (suite *TestSuiteRepository) TestVersionLikeIdsAreRejected(c *C) {
	_, err := template.NewPathId("/a/0123456789abcdef")
	c.Assert(err, Equals, template.ErrBadPathId)

	for name, r := range repositories(c) {
		v, err := r.Create(ctx, job("/a", 1))
		c.Assert(err, IsNil)

		// A version under /a is only ever a version.
		c.Assert(r.Delete(ctx, template.MustPathId("/a"), v), IsNil, Commentf(name))
		versions, err := r.Contents(ctx, template.MustPathId("/a"))
		c.Assert(err, IsNil)
		c.Assert(versions, DeepEquals, []template.Version{}, Commentf(name))
	}
}
