// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

// ctx represents client context for CFS store API calls.
// Since clients implement this interface, they can use custom loggers,
// log format, context information(eg: RequestID etc).
type ctx interface {
	// Elog logs error message.
	Elog(fmtStr string, args ...interface{})
	// Wlog logs warning message.
	Wlog(fmtStr string, args ...interface{})
	// Dlog logs debug message.
	Dlog(fmtStr string, args ...interface{})
	// Vlog logs verbose message.
	Vlog(fmtStr string, args ...interface{})

	// FuncIn logs function details upon entry.
	FuncIn(funcName string, extraFmtStr string, args ...interface{}) FuncOut

	// FuncInName logs function name upon entry.
	FuncInName(funcName string) FuncOut
}

// Ctx is the exported name of the client context so callers outside the
// package can supply their own implementation.
type Ctx = ctx

// FuncOut defines an interface for logging function details prior to return.
// FuncIn and FuncOut are paired.
type FuncOut interface {
	// Out logs function details before return from the function.
	Out()
}
