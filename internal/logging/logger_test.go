// Copyright (c) 2026 ToeiRei
// Testudo - hierarchical asset custody ledger
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
)

func TestSetDebug_TogglesLevel(t *testing.T) {
	defer SetDebug(false)

	SetDebug(true)
	if L.GetLevel() != clog.DebugLevel {
		t.Errorf("level = %v, want debug", L.GetLevel())
	}
	SetDebug(false)
	if L.GetLevel() != clog.InfoLevel {
		t.Errorf("level = %v, want info", L.GetLevel())
	}
}

func TestHelpers_WriteFormattedOutput(t *testing.T) {
	var buf bytes.Buffer
	L.SetOutput(&buf)
	defer L.SetOutput(os.Stderr)

	SetDebug(true)
	defer SetDebug(false)

	Debugf("debug %d", 1)
	Infof("info %s", "x")
	Warnf("warn %s", "y")
	Errorf("error %s", "z")

	out := buf.String()
	for _, want := range []string{"debug 1", "info x", "warn y", "error z"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
