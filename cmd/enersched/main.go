package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/bhhoang/enersched/cmd/enersched/cmd"
	"github.com/bhhoang/enersched/internal/common/logging"
)

func main() {
	logging.ConfigureLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
