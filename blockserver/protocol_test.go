// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package blockserver

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type protocolTests struct {
	suite.Suite
}

func (s *protocolTests) TestRequestHeaderRoundTrip() {
	in := RequestHeader{Op: OpStat, ID: uuid.New(), Pos: 0xdeadbeef}

	var buf bytes.Buffer
	s.Require().NoError(in.encode(&buf))
	s.Require().Equal(requestHeaderSize, buf.Len(),
		"request header has a fixed wire size")

	var out RequestHeader
	s.Require().NoError(out.decode(&buf))
	s.Require().Equal(in, out)
}

func (s *protocolTests) TestResponseHeaderRoundTrip() {
	in := ResponseHeader{Status: StatusOK, Offset: 4096, Length: 1 << 26}

	var buf bytes.Buffer
	s.Require().NoError(in.encode(&buf))
	s.Require().Equal(responseHeaderSize, buf.Len(),
		"response header has a fixed wire size")

	var out ResponseHeader
	s.Require().NoError(out.decode(&buf))
	s.Require().Equal(in, out)
}

func (s *protocolTests) TestHeaderTruncated() {
	in := RequestHeader{Op: OpPut, ID: uuid.New()}

	var buf bytes.Buffer
	s.Require().NoError(in.encode(&buf))
	buf.Truncate(buf.Len() - 3)

	var out RequestHeader
	s.Require().Error(out.decode(&buf),
		"decode of a truncated header must fail")
}

func (s *protocolTests) TestFrameRoundTrip() {
	payload := []byte("frame payload")

	var buf bytes.Buffer
	s.Require().NoError(writeFrame(&buf, payload))

	got, err := readFrame(&buf)
	s.Require().NoError(err)
	s.Require().Equal(payload, got)
}

func (s *protocolTests) TestEmptyFrame() {
	var buf bytes.Buffer
	s.Require().NoError(writeFrame(&buf, nil))
	s.Require().Equal(4, buf.Len(), "empty frame is just the prefix")

	got, err := readFrame(&buf)
	s.Require().NoError(err)
	s.Require().Nil(got)
}

func (s *protocolTests) TestFrameTooLarge() {
	var lbuf [4]byte
	binary.LittleEndian.PutUint32(lbuf[:], maxFrame+1)

	_, err := readFrame(bytes.NewReader(lbuf[:]))
	s.Require().Error(err, "an oversized frame must be rejected")
}

func (s *protocolTests) TestFrameTruncated() {
	var buf bytes.Buffer
	s.Require().NoError(writeFrame(&buf, []byte("frame payload")))
	buf.Truncate(buf.Len() - 5)

	_, err := readFrame(&buf)
	s.Require().Error(err, "read of a truncated frame must fail")
}

func TestProtocol(t *testing.T) {
	suite.Run(t, &protocolTests{})
}
