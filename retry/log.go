package retry

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger lets a calling subsystem override the retry package's logger,
// mirroring the per-package logger wiring used across the node.
func UseLogger(logger btclog.Logger) {
	log = logger
}
