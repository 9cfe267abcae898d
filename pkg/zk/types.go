package zk

import (
	"github.com/samuel/go-zookeeper/zk"
	"time"
)

const (
	StateDisconnected = zk.StateDisconnected
	StateExpired      = zk.StateExpired
	StateHasSession   = zk.StateHasSession

	// Default Zk timeout
	DefaultTimeout = 5 * time.Second

	// Defaults to localhost at port 2181.
	DefaultZkHosts = "localhost:2181"

	// Environment variable to use when hosts are not specified explicitly.
	EnvZkHosts = "ZK_HOSTS"
)

type Node struct {
	Path  string
	Value []byte
	Stats *zk.Stat
}
