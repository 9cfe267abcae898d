package config

import (
	"time"
)

const (
	EnvZookeeper   = "TEMPLATES_ZOOKEEPER"
	EnvRoot        = "TEMPLATES_ROOT"
	EnvListen      = "TEMPLATES_LISTEN"
	EnvConcurrency = "TEMPLATES_STORE_CONCURRENCY"
)

type ZkSettings struct {
	Hosts   string        `json:"zk_hosts"`
	Timeout time.Duration `json:"zk_timeout"`
}

type StoreSettings struct {
	// Root of the template namespace in the store.
	Root string `json:"root"`

	// Max in-flight store calls.
	Concurrency int `json:"concurrency"`

	// In-process store instead of ZooKeeper.  Nothing survives a restart.
	Memory bool `json:"memory"`
}

type ServerSettings struct {
	Listen          string        `json:"listen"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	Retries     int           `json:"retries,omitempty"`
	RetriesWait time.Duration `json:"retries_wait,omitempty"`
}
