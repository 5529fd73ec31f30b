package main

import (
	"os"

	"roombot/cmd"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		log.WithError(err).Error("roombot exited with an error")
		os.Exit(1)
	}
}
