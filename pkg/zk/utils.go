package zk

import (
	"github.com/golang/glog"
	"os"
	"strings"
)

func Hosts() []string {
	servers := []string{DefaultZkHosts}
	list := os.Getenv(EnvZkHosts)
	if len(list) > 0 {
		servers = strings.Split(list, ",")
	}
	glog.Infoln("zk-hosts:", servers)
	return servers
}
