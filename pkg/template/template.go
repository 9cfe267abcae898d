package template

import (
	"fmt"
	"regexp"
)

// Template is a single immutable version of a named template.  Only Id is
// identity; everything else is content and feeds the version hash.
type Template struct {
	Id          PathId                 `json:"id" yaml:"id"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Labels      map[string]string      `json:"labels,omitempty" yaml:"labels,omitempty"`
	Body        map[string]interface{} `json:"body,omitempty" yaml:"body,omitempty"`
}

// Hint returns the minimal template needed to decode stored bytes for id.
func Hint(id PathId) *Template {
	return &Template{Id: id}
}

func (this *Template) String() string {
	return fmt.Sprintf("Template{Id=%s, Description=%q}", this.Id, this.Description)
}

// Version is the content address of an encoded template.
type Version string

var versionRegex = regexp.MustCompile("^[0-9a-f]{16}$")

func ParseVersion(s string) (Version, error) {
	if !versionRegex.MatchString(s) {
		return "", ErrBadVersion
	}
	return Version(s), nil
}

func IsVersion(segment string) bool {
	return versionRegex.MatchString(segment)
}

func (this Version) String() string {
	return string(this)
}
