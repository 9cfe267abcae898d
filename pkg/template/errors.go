package template

import (
	"errors"
	"fmt"
)

var (
	ErrBadPathId  = errors.New("bad-path-id")
	ErrBadVersion = errors.New("bad-version")
	ErrEncode     = errors.New("encode-error")
	ErrDecode     = errors.New("decode-error")
	ErrNoHint     = errors.New("no-decode-hint")
	ErrBadFormat  = errors.New("bad-template-format")
)

// DecodeError is returned when bytes are present at a path but cannot be turned
// back into a template.
type DecodeError struct {
	Path string
	Err  error
}

func (this *DecodeError) Error() string {
	return fmt.Sprintf("decode-error: path=%s err=%v", this.Path, this.Err)
}

func (this *DecodeError) Unwrap() error {
	return this.Err
}

func (this *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
