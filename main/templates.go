package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/infradash/templates/pkg/api"
	"github.com/infradash/templates/pkg/config"
	"github.com/infradash/templates/pkg/repository"
	"github.com/infradash/templates/pkg/server"
	"github.com/infradash/templates/pkg/store"
	"github.com/infradash/templates/pkg/zk"
	"golang.org/x/net/context"
)

func retry_operation(retries int, wait time.Duration, f func() error) error {
	for i := 0; i < retries+1; i++ {
		err := f()
		if err == nil {
			return nil
		}
		glog.Warningln("Operation failed. Err=", err, "Retrying. Attempt=", i)
		time.Sleep(wait)
	}
	glog.Infoln("Operation failed after retries")
	return errors.New("too-many-retries")
}

// Returns the store and, for zk, a reporter of the session state.
func open_store(zkSettings *config.ZkSettings, storeSettings *config.StoreSettings) (store.Store, func() string, error) {
	if storeSettings.Memory {
		glog.Warningln("Using in-memory store. Templates will not survive a restart.")
		return store.NewMemory(), nil, nil
	}
	servers := zk.Hosts()
	if zkSettings.Hosts != "" {
		servers = strings.Split(zkSettings.Hosts, ",")
	}
	client, err := zk.Connect(servers, zkSettings.Timeout)
	if err != nil {
		return nil, nil, err
	}
	s := zk.NewStore(client)
	return s, s.State, nil
}

func main() {

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Versioned template repository\n")
		fmt.Fprintf(os.Stderr, "flags:\n")
		flag.PrintDefaults()
	}

	zkSettings := &config.ZkSettings{}
	zkSettings.BindFlags(flag.CommandLine)

	storeSettings := &config.StoreSettings{}
	storeSettings.BindFlags(flag.CommandLine)

	serverSettings := &config.ServerSettings{}
	serverSettings.BindFlags(flag.CommandLine)

	flag.Parse()

	backend, session, err := open_store(zkSettings, storeSettings)
	if err != nil {
		panic(err)
	}
	backend = store.Limit(backend, storeSettings.Concurrency)

	repo := repository.New(backend, storeSettings.Root)
	err = retry_operation(serverSettings.Retries, serverSettings.RetriesWait, func() error {
		return repo.Initialize(context.Background())
	})
	if err != nil {
		backend.Close()
		panic(err)
	}

	endpoint := api.NewApiEndPoint(repo)
	if session != nil {
		endpoint.SetSession(session)
	}

	glog.Infoln("Starting server:", "listen=", serverSettings.Listen, "root=", storeSettings.Root)
	_, stopped, err := server.Start(serverSettings.Listen, endpoint, backend.Close, serverSettings.ShutdownTimeout)
	if err != nil {
		backend.Close()
		panic(err)
	}

	if err := <-stopped; err != nil {
		glog.Warningln("Server stopped with error:", err)
	}
	glog.Infoln("Bye")
}
