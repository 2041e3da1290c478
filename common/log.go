// Copyright © 2019 Binance
//
// This file is part of Binance. The full Binance copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package common

import (
	logging "github.com/ipfs/go-log/v2"
)

// Logger is shared by every package in this module. The subsystem name
// matches the module so `GOLOG_LOG_LEVEL` and friends can target it.
var Logger = logging.Logger("beacon")

// SetLogLevel adjusts the verbosity of the shared logger at runtime.
// Accepts "debug", "info", "warn", "error", "dpanic", "panic", "fatal".
func SetLogLevel(level string) error {
	return logging.SetLogLevel("beacon", level)
}
