// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import "github.com/absmach/solclient/internal/native"

// ReturnCode is the status reported by the underlying client engine for
// every call. Unrecognized raw values collapse to ReturnCodeFail.
type ReturnCode = native.ReturnCode

// Engine return codes.
const (
	ReturnCodeOk          = native.Ok
	ReturnCodeWouldBlock  = native.WouldBlock
	ReturnCodeInProgress  = native.InProgress
	ReturnCodeNotReady    = native.NotReady
	ReturnCodeEndOfStream = native.EndOfStream
	ReturnCodeNotFound    = native.NotFound
	ReturnCodeNoEvent     = native.NoEvent
	ReturnCodeIncomplete  = native.Incomplete
	ReturnCodeRollback    = native.Rollback
	ReturnCodeFail        = native.Fail
)

// SubCode is the engine's secondary diagnostic code supplementing a failing
// return code.
type SubCode = native.SubCode

// Diagnostics pairs a failing call's return code with the engine's
// last-error record, read immediately after the call so a later call cannot
// overwrite it.
type Diagnostics struct {
	Code    ReturnCode
	SubCode SubCode
	Info    string
}

func (d Diagnostics) String() string {
	if d.Info == "" {
		return d.Code.String() + " (subcode " + d.SubCode.String() + ")"
	}
	return d.Code.String() + " (subcode " + d.SubCode.String() + ": " + d.Info + ")"
}

// lastDiagnostics captures the engine's last-error record for a failing
// return code. Must be called before any other engine call.
func lastDiagnostics(rc ReturnCode) Diagnostics {
	info := native.GetLastErrorInfo()
	return Diagnostics{Code: rc, SubCode: info.SubCode, Info: info.Info}
}
