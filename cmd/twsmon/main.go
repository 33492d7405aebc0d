package main

import (
	"flag"
	"reflect"

	"github.com/golang/glog"

	"github.com/robotalks/tws.go/pkg/app"
	"github.com/robotalks/tws.go/pkg/link/mqtt"
	"github.com/robotalks/tws.go/pkg/status"
)

func init() {
	app.SetupClientFlags()
}

func main() {
	flag.Parse()
	flag.Set("logtostderr", "true")

	conf := app.NewConfig()
	q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL, "twsmon-")
	if err != nil {
		glog.Exit(err)
	}
	if err := q.Connect(); err != nil {
		glog.Exit(err)
	}

	handler := mqtt.Handler(func(topic string, payload []byte) {
		msg, err := status.Decode(payload)
		if err != nil {
			glog.Warningf("%s: bad message: %v", topic, err)
			return
		}
		glog.Infof("%s: [%s] %s", topic, reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), msg.String())
	})
	q.Sub(mqtt.AllStatus, handler)
	q.Sub(mqtt.AllEvents, handler)
	<-(chan struct{})(nil)
}
