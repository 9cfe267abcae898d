package template

import (
	p "path"
	"strings"
)

// PathId names a template independent of its versions, e.g. /eng/dev/foo.
// The value is always the cleaned, absolute form so two ids are equal iff
// their segments are equal.
type PathId string

// NewPathId joins and cleans the parts.  Relative segments are rejected, and so
// are segments spelled like a Version since those could not be told apart from
// the versions of the parent template in the store.
func NewPathId(s string, parts ...string) (PathId, error) {
	for _, part := range append([]string{s}, parts...) {
		for _, seg := range strings.Split(part, "/") {
			if seg == "." || seg == ".." || IsVersion(seg) {
				return "", ErrBadPathId
			}
		}
	}
	clean := p.Join("/", s, p.Join(parts...))
	if clean == "/" {
		return "", ErrBadPathId
	}
	return PathId(clean), nil
}

// Same as NewPathId but panics on bad input.  For literals and tests.
func MustPathId(s string, parts ...string) PathId {
	id, err := NewPathId(s, parts...)
	if err != nil {
		panic(err)
	}
	return id
}

func (this PathId) String() string {
	return string(this)
}

func (this PathId) Segments() []string {
	if this == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(string(this), "/"), "/")
}

func (this PathId) Base() string {
	return p.Base(string(this))
}

// Parent returns the enclosing id and false if this id is top level.
func (this PathId) Parent() (PathId, bool) {
	dir := p.Dir(string(this))
	if dir == "/" || dir == "." {
		return "", false
	}
	return PathId(dir), true
}

func (this PathId) Sub(parts ...string) (PathId, error) {
	return NewPathId(string(this), parts...)
}

func (this PathId) IsParentOf(other PathId) bool {
	return strings.HasPrefix(string(other), string(this)+"/")
}
