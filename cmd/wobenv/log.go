package main

import "github.com/entrhq/wobenv/pkg/logging"

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("run")
	if err != nil {
		debugLog.Warnf("Failed to initialize run logger, using stderr fallback: %v", err)
	}
}
