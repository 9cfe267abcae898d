package server

import (
	"github.com/golang/glog"
	"golang.org/x/net/context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Start listens on addr and serves endpoint until a kernel signal arrives,
// something is sent on the returned channel, or the http server dies.  Shutdown
// tasks then run in order: the http server is drained, then onShutdown is
// called.  The error channel receives the first shutdown error, or the error
// the http server died with, or nil.
func Start(addr string, endpoint http.Handler, onShutdown func() error, timeout time.Duration) (chan<- int, <-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	stop, stopped := start(listener, endpoint, onShutdown, timeout)
	return stop, stopped, nil
}

func start(listener net.Listener, endpoint http.Handler, onShutdown func() error, timeout time.Duration) (chan<- int, <-chan error) {
	shutdownTasks := make(chan func() error, 100)

	glog.Infoln("Starting server")
	engineStop, engineStopped := Serve(listener, endpoint, timeout)

	// Set when the engine stopped before shutdown began.
	var engineDied error
	engineDead := false

	shutdownTasks <- func() error {
		if engineDead {
			return nil
		}
		glog.Infoln("Stopping engine")
		engineStop <- 1
		err := <-engineStopped
		glog.Infoln("Stopped engine. Err=", err)
		return err
	}
	if onShutdown != nil {
		shutdownTasks <- onShutdown
	}
	shutdownTasks <- nil // stop on this

	// Triggers to start shutdown sequence
	fromKernel := make(chan os.Signal, 1)

	// kill -9 is SIGKILL and is uncatchable.
	signal.Notify(fromKernel, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	fromUser := make(chan int)
	stopped := make(chan error, 1)
	go func() {
		select {
		case <-fromKernel:
			glog.Infoln("Received kernel signal to start shutdown.")
		case <-fromUser:
			glog.Infoln("Received user signal to start shutdown.")
		case err := <-engineStopped:
			glog.Warningln("Engine died. Starting shutdown. Err=", err)
			engineDead, engineDied = true, err
		}
		signal.Stop(fromKernel)
		for {
			task, ok := <-shutdownTasks
			if !ok || task == nil {
				break
			}
			if err := task(); err != nil {
				glog.Warningln("Error while shutting down:", err)
				stopped <- err
				return
			}
		}
		stopped <- engineDied
	}()

	return fromUser, stopped
}

// Serve runs an http server on the listener.  Sending on the stop channel
// drains in-flight requests for up to timeout.  The error channel receives nil
// on a clean stop.
func Serve(listener net.Listener, endpoint http.Handler, timeout time.Duration) (chan<- int, <-chan error) {
	server := &http.Server{Handler: endpoint}
	stop := make(chan int, 1)
	stopped := make(chan error, 1)
	served := make(chan error, 1)

	go func() {
		glog.Infoln("Starting listener at", listener.Addr())
		// Serve will block until the server is shut down or fails.
		served <- server.Serve(listener)
	}()

	go func() {
		select {
		case <-stop:
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			err := server.Shutdown(ctx)
			<-served
			stopped <- err
		case err := <-served:
			glog.Warningln("Engine stopped due to error", err)
			stopped <- err
		}
	}()
	return stop, stopped
}
