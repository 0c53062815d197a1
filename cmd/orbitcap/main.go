package main

import (
	"os"

	"github.com/spf13/afero"
)

const (
	ProgName = "orbitcap"
)

var (
	version = "undefined"
)

func run() int {
	root := newRootCmd(newApp(afero.NewOsFs()))
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
