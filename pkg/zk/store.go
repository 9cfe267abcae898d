package zk

import (
	"github.com/golang/glog"
	"github.com/infradash/templates/pkg/store"
	"golang.org/x/net/context"
)

// Store adapts a Client to store.Store.  The ZooKeeper errors that have a
// store equivalent are translated; everything else is returned unchanged.
type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func translate(err error) error {
	switch err {
	case ErrNotExist:
		return store.ErrNotExist
	case ErrNodeExists:
		return store.ErrNodeExists
	case ErrNotEmpty:
		return store.ErrNotEmpty
	case ErrNotConnected, ErrClosing, ErrConnectionClosed:
		return store.ErrClosed
	}
	return err
}

func (this *Store) Create(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := this.client.CreateNode(path, value)
	if err != nil {
		glog.V(1).Infoln("zk-create:", "path=", path, "err=", err)
	}
	return translate(err)
}

func (this *Store) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := this.client.GetNode(path)
	if err != nil {
		return nil, translate(err)
	}
	return n.Value, nil
}

func (this *Store) Children(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := this.client.Children(path)
	if err != nil {
		return nil, translate(err)
	}
	return paths, nil
}

func (this *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	exists, err := this.client.Exists(path)
	return exists, translate(err)
}

func (this *Store) Delete(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if recursive {
		return translate(this.client.DeleteTree(path))
	}
	switch err := this.client.DeleteNode(path); err {
	case nil, ErrNotExist:
		return nil
	default:
		return translate(err)
	}
}

func (this *Store) State() string {
	return this.client.State()
}

func (this *Store) Close() error {
	return this.client.Close()
}
