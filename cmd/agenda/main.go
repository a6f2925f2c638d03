package main

import (
	"os"

	appLog "agendacal/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("agendacal failed", err)
		os.Exit(1)
	}
}
