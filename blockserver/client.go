// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package blockserver

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
)

const dialTimeout = time.Second
const callTimeout = 30 * time.Second

// Client calls a block server. One connection per call, no pooling:
// calls are rare, one stat per block read and one put per block
// write, against a server on the same host.
type Client struct {
	addr     string
	hostname string
}

// NewClient returns a client for the block server at addr
func NewClient(addr string) *Client {
	host, _ := os.Hostname()
	return &Client{
		addr:     addr,
		hostname: host,
	}
}

func (c *Client) call(req *RequestHeader, payload []byte) (*ResponseHeader,
	[]byte, error) {

	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(callTimeout))

	if err := req.encode(conn); err != nil {
		return nil, nil, err
	}
	if err := writeFrame(conn, payload); err != nil {
		return nil, nil, err
	}

	var resp ResponseHeader
	if err := resp.decode(conn); err != nil {
		return nil, nil, err
	}
	body, err := readFrame(conn)
	if err != nil {
		return nil, nil, err
	}
	if resp.Status == StatusErr {
		return nil, nil, fmt.Errorf("block server: %s", string(body))
	}
	return &resp, body, nil
}

// Stat asks whether block id is resident, requesting the range from
// pos on. The local hostname rides along so the server can log who is
// asking.
func (c *Client) Stat(id uuid.UUID, pos uint64) (BlockRef, bool, error) {
	req := RequestHeader{Op: OpStat, ID: id, Pos: pos}
	resp, body, err := c.call(&req, []byte(c.hostname))
	if err != nil {
		return BlockRef{}, false, err
	}
	if resp.Status == StatusNotFound {
		return BlockRef{}, false, nil
	}
	return BlockRef{
		Path:   string(body),
		Offset: resp.Offset,
		Length: resp.Length,
	}, true, nil
}

// Put hands the server a payload to keep resident
func (c *Client) Put(id uuid.UUID, payload []byte) error {
	req := RequestHeader{Op: OpPut, ID: id}
	_, _, err := c.call(&req, payload)
	return err
}

// Delete drops the resident copy of block id
func (c *Client) Delete(id uuid.UUID) error {
	req := RequestHeader{Op: OpDelete, ID: id}
	_, _, err := c.call(&req, nil)
	return err
}
