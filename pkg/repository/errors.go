package repository

import (
	"errors"
	"fmt"
	"github.com/golang/glog"
	"runtime"
)

var (
	ErrAlreadyExists    = errors.New("template-version-exists")
	ErrNotFound         = errors.New("template-not-found")
	ErrStoreUnavailable = errors.New("store-unavailable")
	ErrNoTemplate       = errors.New("no-template")
)

// StoreError is a backing store failure that has no more specific meaning to
// the repository.  It matches ErrStoreUnavailable.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (this *StoreError) Error() string {
	return fmt.Sprintf("store-unavailable: op=%s path=%s err=%v", this.Op, this.Path, this.Err)
}

func (this *StoreError) Unwrap() error {
	return this.Err
}

func (this *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func exceptionEvent(err error, context interface{}, a ...interface{}) {
	source := ""
	_, file, line, ok := runtime.Caller(1)
	if ok {
		source = fmt.Sprintf("%s:%d", file, line)
	}
	glog.Warningln("!!!! Err=", err, "Source=", source, "Context=", context, fmt.Sprintln(a...))
}
