// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	log "github.com/sirupsen/logrus"
)

// StdCtx is the default ctx provided by the cfs package. Store clients
// can either have a custom implementation of ctx or use StdCtx. It
// routes store logging through the process-wide logrus logger, tagging
// every line with the request id. Error and warning lines surface at
// the matching logrus levels, debug lines at debug, and the verbose
// call tracing only at trace.
type StdCtx struct {
	RequestID uint64
}

// DefaultCtx is a StdCtx usable by store clients which need one StdCtx
var DefaultCtx = &StdCtx{RequestID: 0}

// Elog logs error messages when using StdCtx
func (s *StdCtx) Elog(fmtStr string, args ...interface{}) {
	log.WithField("request", s.RequestID).Errorf(fmtStr, args...)
}

// Wlog logs warning messages when using StdCtx
func (s *StdCtx) Wlog(fmtStr string, args ...interface{}) {
	log.WithField("request", s.RequestID).Warnf(fmtStr, args...)
}

// Dlog logs debug messages when using StdCtx
func (s *StdCtx) Dlog(fmtStr string, args ...interface{}) {
	log.WithField("request", s.RequestID).Debugf(fmtStr, args...)
}

// Vlog logs verbose messages when using StdCtx
func (s *StdCtx) Vlog(fmtStr string, args ...interface{}) {
	log.WithField("request", s.RequestID).Tracef(fmtStr, args...)
}

type stdCtxExitFuncState struct {
	c        *StdCtx
	funcName string
}

// FuncIn logs the function entry when using StdCtx with args
func (s *StdCtx) FuncIn(funcName string, fmtStr string,
	args ...interface{}) FuncOut {

	s.Vlog("In--- "+funcName+" "+fmtStr, args...)
	return &stdCtxExitFuncState{c: s, funcName: funcName}
}

// FuncInName logs the function entry when using StdCtx
func (s *StdCtx) FuncInName(funcName string) FuncOut {
	return s.FuncIn(funcName, "")
}

// Out logs the function exit when using StdCtx
func (es *stdCtxExitFuncState) Out() {
	es.c.Vlog("--Out %s", es.funcName)
}
