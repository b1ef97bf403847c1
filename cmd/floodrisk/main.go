package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
