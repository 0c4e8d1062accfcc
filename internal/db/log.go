// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/toeirei/testudo/internal/logging"

// dbLogf routes low-level database log lines through the shared logger at
// debug level so routine migration chatter stays out of normal output.
func dbLogf(format string, v ...any) {
	logging.Debugf(format, v...)
}
