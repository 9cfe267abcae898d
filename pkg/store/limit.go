package store

import (
	"github.com/golang/glog"
	"golang.org/x/net/context"
)

type limited struct {
	Store
	slots chan struct{}
}

// Limit bounds the number of in-flight calls against s to n.  Callers waiting
// for a slot give up when their context is done.
func Limit(s Store, n int) Store {
	if n < 1 {
		n = 1
	}
	glog.Infoln("store-limit:", "max-in-flight=", n)
	return &limited{Store: s, slots: make(chan struct{}, n)}
}

func (this *limited) acquire(ctx context.Context) error {
	select {
	case this.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (this *limited) release() {
	<-this.slots
}

func (this *limited) Create(ctx context.Context, path string, value []byte) error {
	if err := this.acquire(ctx); err != nil {
		return err
	}
	defer this.release()
	return this.Store.Create(ctx, path, value)
}

func (this *limited) Read(ctx context.Context, path string) ([]byte, error) {
	if err := this.acquire(ctx); err != nil {
		return nil, err
	}
	defer this.release()
	return this.Store.Read(ctx, path)
}

func (this *limited) Children(ctx context.Context, path string) ([]string, error) {
	if err := this.acquire(ctx); err != nil {
		return nil, err
	}
	defer this.release()
	return this.Store.Children(ctx, path)
}

func (this *limited) Exists(ctx context.Context, path string) (bool, error) {
	if err := this.acquire(ctx); err != nil {
		return false, err
	}
	defer this.release()
	return this.Store.Exists(ctx, path)
}

func (this *limited) Delete(ctx context.Context, path string, recursive bool) error {
	if err := this.acquire(ctx); err != nil {
		return err
	}
	defer this.release()
	return this.Store.Delete(ctx, path, recursive)
}
