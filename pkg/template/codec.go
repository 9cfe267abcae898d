package template

import (
	"fmt"
	p "path"
	"strings"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// Bumped whenever the encoded field layout changes.
	formatVersion = 1

	fieldFormat      = "format"
	fieldDescription = "description"
	fieldLabels      = "labels"
	fieldBody        = "body"

	DefaultRoot = "/templates"
)

// Codec maps templates to store paths under a fixed root.
type Codec struct {
	Root string
}

func NewCodec(root string) Codec {
	return Codec{Root: p.Clean("/" + root)}
}

func (this Codec) BasePath(id PathId) string {
	return p.Join(this.Root, string(id))
}

func (this Codec) VersionPath(id PathId, version Version) string {
	return p.Join(this.Root, string(id), string(version))
}

// StorePath returns the version path of the template along with the encoded
// bytes that belong there.
func (this Codec) StorePath(t *Template) (string, Version, []byte, error) {
	buff, err := Encode(t)
	if err != nil {
		return "", "", nil, err
	}
	v := VersionOf(buff)
	return this.VersionPath(t.Id, v), v, buff, nil
}

func (this Codec) Version(t *Template) (Version, error) {
	buff, err := Encode(t)
	if err != nil {
		return "", err
	}
	return VersionOf(buff), nil
}

// PathIdOf is the inverse of BasePath.
func (this Codec) PathIdOf(storePath string) (PathId, bool) {
	prefix := this.Root
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(storePath, prefix) {
		return "", false
	}
	id, err := NewPathId(strings.TrimPrefix(storePath, prefix))
	if err != nil {
		return "", false
	}
	return id, true
}

func VersionOf(encoded []byte) Version {
	return Version(fmt.Sprintf("%016x", xxhash.Sum64(encoded)))
}

// Encode serializes the content fields of the template.  The id is left out;
// it is carried by the store path and supplied back by the decode hint.
func Encode(t *Template) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil template", ErrEncode)
	}
	fields := map[string]interface{}{
		fieldFormat: formatVersion,
	}
	if t.Description != "" {
		fields[fieldDescription] = t.Description
	}
	if len(t.Labels) > 0 {
		labels := make(map[string]interface{}, len(t.Labels))
		for k, v := range t.Labels {
			labels[k] = v
		}
		fields[fieldLabels] = labels
	}
	if len(t.Body) > 0 {
		body, err := normalizeMap(t.Body, fieldBody)
		if err != nil {
			return nil, err
		}
		fields[fieldBody] = body
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	// Deterministic marshaling sorts map keys so the same content always
	// hashes to the same version.
	buff, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buff, nil
}

func Decode(data []byte, hint *Template) (*Template, error) {
	if hint == nil || hint.Id == "" {
		return nil, &DecodeError{Err: ErrNoHint}
	}
	fail := func(err error) (*Template, error) {
		return nil, &DecodeError{Path: hint.Id.String(), Err: err}
	}

	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return fail(err)
	}
	m := st.AsMap()
	if f, ok := m[fieldFormat].(float64); !ok || f != formatVersion {
		return fail(ErrBadFormat)
	}

	t := &Template{Id: hint.Id}
	if d, has := m[fieldDescription]; has {
		s, ok := d.(string)
		if !ok {
			return fail(fmt.Errorf("%w: description", ErrBadFormat))
		}
		t.Description = s
	}
	if l, has := m[fieldLabels]; has {
		labels, ok := l.(map[string]interface{})
		if !ok {
			return fail(fmt.Errorf("%w: labels", ErrBadFormat))
		}
		t.Labels = make(map[string]string, len(labels))
		for k, v := range labels {
			s, ok := v.(string)
			if !ok {
				return fail(fmt.Errorf("%w: label %s", ErrBadFormat, k))
			}
			t.Labels[k] = s
		}
	}
	if b, has := m[fieldBody]; has {
		body, ok := b.(map[string]interface{})
		if !ok {
			return fail(fmt.Errorf("%w: body", ErrBadFormat))
		}
		t.Body = body
	}
	return t, nil
}
