package main

import (
	"github.com/robotalks/tws.go/pkg/app"
	"github.com/robotalks/tws.go/pkg/cli/sh"
)

//go-build: CGO_ENABLED=0

func init() {
	app.SetupClientFlags()
}

func main() {
	sh.Main()
}
