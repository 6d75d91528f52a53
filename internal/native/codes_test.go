// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import (
	"strings"
	"testing"
)

func TestReturnCodeFromRaw(t *testing.T) {
	known := []ReturnCode{
		Fail, Ok, WouldBlock, InProgress, NotReady,
		EndOfStream, NotFound, NoEvent, Incomplete, Rollback,
	}
	for _, rc := range known {
		if got := ReturnCodeFromRaw(int32(rc)); got != rc {
			t.Errorf("ReturnCodeFromRaw(%d) = %v, want %v", int32(rc), got, rc)
		}
	}

	// Anything outside the known set collapses to Fail, never Ok.
	for _, raw := range []int32{-2, 9, 42, 1000} {
		if got := ReturnCodeFromRaw(raw); got != Fail {
			t.Errorf("ReturnCodeFromRaw(%d) = %v, want Fail", raw, got)
		}
	}
}

func TestReturnCodeString(t *testing.T) {
	if !strings.HasPrefix(Ok.String(), "Ok") {
		t.Errorf("Ok.String() = %q", Ok.String())
	}
	if !strings.HasPrefix(Fail.String(), "Fail") {
		t.Errorf("Fail.String() = %q", Fail.String())
	}
	if s := ReturnCode(99).String(); !strings.Contains(s, "99") {
		t.Errorf("unknown code String() = %q, want the raw value included", s)
	}
}

func TestSubCodeString(t *testing.T) {
	if got := SubCodeUnknownFlowName.String(); got != "UNKNOWN_FLOW_NAME" {
		t.Errorf("SubCodeUnknownFlowName.String() = %q", got)
	}
	if got := SubCode(1234).String(); got != "SUBCODE_1234" {
		t.Errorf("unknown subcode String() = %q", got)
	}
}

func TestLastErrorRecord(t *testing.T) {
	clearLastError()
	setLastError(SubCodeTimeout, "request timed out after %d ms", 250)

	info := GetLastErrorInfo()
	if info.SubCode != SubCodeTimeout {
		t.Errorf("SubCode = %v, want SubCodeTimeout", info.SubCode)
	}
	if !strings.Contains(info.Info, "250") {
		t.Errorf("Info = %q, want formatted arguments included", info.Info)
	}

	// Each failing call overwrites the single slot.
	setLastError(SubCodeLoginFailure, "login failure")
	if got := GetLastErrorInfo().SubCode; got != SubCodeLoginFailure {
		t.Errorf("SubCode after overwrite = %v, want SubCodeLoginFailure", got)
	}
}
