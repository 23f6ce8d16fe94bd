// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package blockserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server answers stat/put/delete requests against one Volume over the
// framed TCP protocol.
type Server struct {
	listener net.Listener
	vol      *Volume
}

// NewServer serves vol on l
func NewServer(l net.Listener, vol *Volume) *Server {
	return &Server{listener: l, vol: vol}
}

// Addr returns the listen address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts and serves connections until ctx is cancelled, then
// returns once every in flight connection has drained.
func (s *Server) Serve(ctx context.Context) error {
	if n, err := s.vol.Resident(); err == nil {
		ResidentBlocks.Set(float64(n))
		log.WithFields(log.Fields{
			"blocks": n,
			"root":   s.vol.root,
		}).Info("volume scanned")
	}

	var wg sync.WaitGroup
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.listener.Close()
	})
	g.Go(func() error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.serveConn(conn)
			}()
		}
	})

	err := g.Wait()
	wg.Wait()
	return err
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		var req RequestHeader
		if err := req.decode(conn); err != nil {
			// EOF is how clients hang up
			return
		}
		payload, err := readFrame(conn)
		if err != nil {
			log.WithFields(log.Fields{
				"peer": conn.RemoteAddr(),
				"err":  err,
			}).Warn("bad request frame")
			return
		}
		if err := s.serveOp(conn, &req, payload); err != nil {
			log.WithFields(log.Fields{
				"peer": conn.RemoteAddr(),
				"err":  err,
			}).Warn("response write failed")
			return
		}
	}
}

func opName(op uint8) string {
	switch op {
	case OpStat:
		return "stat"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

func (s *Server) serveOp(conn net.Conn, req *RequestHeader,
	payload []byte) error {

	start := time.Now()
	defer func() {
		RequestDurationSeconds.WithLabelValues(opName(req.Op)).
			Observe(time.Since(start).Seconds())
	}()

	switch req.Op {
	case OpStat:
		return s.serveStat(conn, req, payload)
	case OpPut:
		return s.servePut(conn, req, payload)
	case OpDelete:
		return s.serveDelete(conn, req)
	default:
		return respondErr(conn, fmt.Sprintf("unknown op %d", req.Op))
	}
}

func (s *Server) serveStat(conn net.Conn, req *RequestHeader,
	hint []byte) error {

	ref, ok, err := s.vol.Stat(req.ID, req.Pos)
	if err != nil {
		return respondErr(conn, err.Error())
	}
	if !ok {
		StatRequestsTotal.WithLabelValues(Miss).Inc()
		hdr := ResponseHeader{Status: StatusNotFound}
		if err := hdr.encode(conn); err != nil {
			return err
		}
		return writeFrame(conn, nil)
	}

	StatRequestsTotal.WithLabelValues(Hit).Inc()
	log.WithFields(log.Fields{
		"block": req.ID,
		"from":  string(hint),
		"size":  humanize.IBytes(ref.Length),
	}).Debug("stat hit")
	hdr := ResponseHeader{
		Status: StatusOK,
		Offset: ref.Offset,
		Length: ref.Length,
	}
	if err := hdr.encode(conn); err != nil {
		return err
	}
	return writeFrame(conn, []byte(ref.Path))
}

func (s *Server) servePut(conn net.Conn, req *RequestHeader,
	payload []byte) error {

	created, err := s.vol.Put(req.ID, payload)
	if err != nil {
		log.WithFields(log.Fields{
			"block": req.ID,
			"err":   err,
		}).Error("put failed")
		return respondErr(conn, err.Error())
	}

	BlocksStoredTotal.Inc()
	StoredBytesTotal.Add(float64(len(payload)))
	if created {
		ResidentBlocks.Inc()
	}
	log.WithFields(log.Fields{
		"block": req.ID,
		"size":  humanize.IBytes(uint64(len(payload))),
	}).Info("block stored")

	hdr := ResponseHeader{Status: StatusOK}
	if err := hdr.encode(conn); err != nil {
		return err
	}
	return writeFrame(conn, nil)
}

func (s *Server) serveDelete(conn net.Conn, req *RequestHeader) error {
	removed, err := s.vol.Delete(req.ID)
	if err != nil {
		return respondErr(conn, err.Error())
	}
	if removed {
		BlocksDeletedTotal.Inc()
		ResidentBlocks.Dec()
		log.WithField("block", req.ID).Info("block dropped")
	}

	hdr := ResponseHeader{Status: StatusOK}
	if err := hdr.encode(conn); err != nil {
		return err
	}
	return writeFrame(conn, nil)
}

func respondErr(conn net.Conn, msg string) error {
	hdr := ResponseHeader{Status: StatusErr}
	if err := hdr.encode(conn); err != nil {
		return err
	}
	return writeFrame(conn, []byte(msg))
}
