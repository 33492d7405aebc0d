package main

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/app"
)

func init() {
	app.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := app.NewConfig()
	if err := conf.Load(); err != nil {
		glog.Exit(err)
	}
	d, err := conf.NewDaemon()
	if err != nil {
		glog.Exit(err)
	}
	if err := d.Run(); err != nil {
		glog.Error(err)
	}
}
