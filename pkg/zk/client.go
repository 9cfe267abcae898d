package zk

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/samuel/go-zookeeper/zk"
)

type Client struct {
	conn    *zk.Conn
	servers []string
	timeout time.Duration

	lock sync.RWMutex
	stop chan int
}

type glogger struct{}

func (glogger) Printf(format string, args ...interface{}) {
	glog.Infof(format, args...)
}

func Connect(servers []string, timeout time.Duration) (*Client, error) {
	conn, events, err := zk.Connect(servers, timeout, zk.WithLogger(glogger{}))
	glog.Infoln("Connect to zk:", "servers=", servers, "err=", err)
	if err != nil {
		return nil, err
	}
	zz := &Client{
		conn:    conn,
		servers: servers,
		timeout: timeout,
		stop:    make(chan int),
	}

	go func() {
		defer glog.Infoln("ZK event loop stopped")
		for {
			select {
			case evt, open := <-events:
				if !open {
					return
				}
				switch evt.State {
				case StateExpired:
					glog.Warningln("ZK state expired --> sent by server on reconnection.")
				case StateHasSession:
					glog.Infoln("ZK session established")
				case StateDisconnected:
					glog.Warningln("ZK state disconnected")
				default:
					glog.V(2).Infoln("zk-event:", "type=", evt.Type, "state=", evt.State)
				}
			case <-zz.stop:
				return
			}
		}
	}()

	glog.Infoln("Connected to zk:", servers)
	return zz, nil
}

func (this *Client) check() error {
	if this.conn == nil {
		return ErrNotConnected
	}
	return nil
}

// State names the current session state, e.g. StateHasSession.
func (this *Client) State() string {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if this.conn == nil {
		return "StateClosed"
	}
	return this.conn.State().String()
}

func (this *Client) Close() error {
	this.lock.Lock()
	defer this.lock.Unlock()

	if this.conn == nil {
		return nil
	}
	glog.Infoln("Shutting down...")
	close(this.stop)
	this.conn.Close()
	this.conn = nil
	glog.Infoln("Shutdown complete.")
	return nil
}

func (this *Client) GetNode(path string) (*Node, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(); err != nil {
		return nil, err
	}
	value, stats, err := this.conn.Get(path)
	if err != nil {
		return nil, err
	}
	return &Node{Path: path, Value: value, Stats: stats}, nil
}

func (this *Client) Exists(path string) (bool, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(); err != nil {
		return false, err
	}
	exists, _, err := this.conn.Exists(path)
	return exists, err
}

// Children returns the full paths of the immediate children, sorted.
func (this *Client) Children(path string) ([]string, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(); err != nil {
		return nil, err
	}
	names, _, err := this.conn.Children(path)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = join(path, n)
	}
	return paths, nil
}

// Creates a new node.  If node already exists, error will be returned.
func (this *Client) CreateNode(path string, value []byte) (*Node, error) {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(); err != nil {
		return nil, err
	}
	// Make sure all parents exist
	if err := this.createParents(path); err != nil {
		return nil, err
	}
	p, err := this.conn.Create(path, value, 0, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, err
	}
	return &Node{Path: p, Value: value}, nil
}

func listParents(path string) []string {
	p := path
	if p[0:1] != "/" {
		p = "/" + path // Must begin with /
	}
	pp := strings.Split(p, "/")
	t := []string{}
	root := ""
	for _, x := range pp[1:] {
		z := root + "/" + x
		root = z
		t = append(t, z)
	}
	return t
}

func (this *Client) createParents(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return nil
	}
	for _, p := range listParents(dir) {
		exists, _, err := this.conn.Exists(p)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		_, err = this.conn.Create(p, []byte{}, 0, zk.WorldACL(zk.PermAll))
		switch err {
		case nil, ErrNodeExists:
			// Someone else may have created it between the check and here.
		default:
			return err
		}
	}
	return nil
}

func (this *Client) DeleteNode(path string) error {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(); err != nil {
		return err
	}
	return this.conn.Delete(path, -1)
}

// DeleteTree removes path and everything below it, children first.  Nodes
// that disappear while deleting are not an error.
func (this *Client) DeleteTree(path string) error {
	this.lock.RLock()
	defer this.lock.RUnlock()
	if err := this.check(); err != nil {
		return err
	}
	return this.deleteTree(path)
}

func (this *Client) deleteTree(path string) error {
	names, _, err := this.conn.Children(path)
	switch err {
	case nil:
	case ErrNotExist:
		return nil
	default:
		return err
	}
	for _, n := range names {
		if err := this.deleteTree(join(path, n)); err != nil {
			return err
		}
	}
	switch err := this.conn.Delete(path, -1); err {
	case nil, ErrNotExist:
		return nil
	default:
		return err
	}
}

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
