package repository

import (
	"sync"
)

type pathLock struct {
	sync.Mutex
	count int
}

// pathLocks hands out one mutex per store path.  Entries are reference counted
// and dropped once nobody holds or waits on them.
type pathLocks struct {
	lock  sync.Mutex
	paths map[string]*pathLock
}

func newPathLocks() *pathLocks {
	return &pathLocks{paths: map[string]*pathLock{}}
}

// Lock blocks until path is free and returns the matching unlock.
func (this *pathLocks) Lock(path string) func() {
	this.lock.Lock()
	l, has := this.paths[path]
	if !has {
		l = &pathLock{}
		this.paths[path] = l
	}
	l.count++
	this.lock.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		this.lock.Lock()
		l.count--
		if l.count == 0 {
			delete(this.paths, path)
		}
		this.lock.Unlock()
	}
}

func (this *pathLocks) Len() int {
	this.lock.Lock()
	defer this.lock.Unlock()
	return len(this.paths)
}
