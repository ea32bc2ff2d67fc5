package main

import (
	"os"

	"adpulse/cmd/handlers"
	"adpulse/internal/logger"
)

func main() {
	logger.Init()
	if err := handlers.Execute(); err != nil {
		os.Exit(1)
	}
}
