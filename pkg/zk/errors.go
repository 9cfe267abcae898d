package zk

import (
	"errors"
	"github.com/samuel/go-zookeeper/zk"
)

var (
	ErrNotConnected     = errors.New("zk-not-initialized")
	ErrNotExist         = zk.ErrNoNode
	ErrNodeExists       = zk.ErrNodeExists
	ErrNotEmpty         = zk.ErrNotEmpty
	ErrConnectionClosed = zk.ErrConnectionClosed
	ErrSessionExpired   = zk.ErrSessionExpired
	ErrClosing          = zk.ErrClosing
)
