package budget

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger lets a calling subsystem override the budget package's logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
