package config

import (
	"flag"
	"github.com/infradash/templates/pkg/template"
	"github.com/infradash/templates/pkg/zk"
	"os"
	"strconv"
	"time"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func (this *ZkSettings) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&this.Hosts, "zookeeper", os.Getenv(EnvZookeeper),
		"Comma-delimited zk host:port, e.g. zk1.infradash.io,zk2.infradash.io,zk3.infradash.io:2181. Falls back to ZK_HOSTS.")
	fs.DurationVar(&this.Timeout, "timeout", zk.DefaultTimeout, "Session timeout to zk.")
}

func (this *StoreSettings) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&this.Root, "root", envOr(EnvRoot, template.DefaultRoot), "Store path under which templates live")
	fs.IntVar(&this.Concurrency, "store_concurrency", envIntOr(EnvConcurrency, 1), "Max in-flight store operations")
	fs.BoolVar(&this.Memory, "memory", false, "True to use an in-memory store instead of zk")
}

func (this *ServerSettings) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&this.Listen, "listen", envOr(EnvListen, ":8080"), "Listen address for the REST api")
	fs.DurationVar(&this.ShutdownTimeout, "shutdown_timeout", 10*time.Second, "Max wait for in-flight requests on shutdown")
	fs.IntVar(&this.Retries, "retries", 5, "Retries for loading the template index at startup")
	fs.DurationVar(&this.RetriesWait, "retries_wait", 5*time.Second, "Wait between retries")
}
