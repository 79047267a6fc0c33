//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package serialbridge talks RVSWD through a microcontroller that bit-bangs
// the protocol and is connected over a serial port.
//
// Requests and responses are SLIP frames. A request is an opcode followed by
// arguments, a response is a status byte optionally followed by a
// little-endian 32-bit value.
//
//   01                  init       -> status
//   02                  reset link -> status
//   03 reg              read       -> status value
//   04 reg value        write      -> status
package serialbridge

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/ch32prog/cli/flash/common"
)

const (
	opInit      = 0x01
	opResetLink = 0x02
	opRead      = 0x03
	opWrite     = 0x04

	statusOK = 0x00

	DefaultBaudRate = 460800
	DefaultTimeout  = 500 * time.Millisecond

	interCharacterTimeout = 100 * time.Millisecond
)

// ErrNoResponse is returned when the bridge does not answer in time.
var ErrNoResponse = errors.New("no response from bridge")

// Link is a DebugLink through a serial bridge.
type Link struct {
	// Timeout bounds the wait for each response.
	Timeout time.Duration

	mu   sync.Mutex
	conn io.ReadWriteCloser
	dr   *deadlineReader
	srw  *common.SLIPReaderWriter
}

// deadlineReader fails reads that produce no data before the deadline.
type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (d *deadlineReader) Read(buf []byte) (int, error) {
	for {
		n, err := d.r.Read(buf)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		if time.Now().After(d.deadline) {
			return 0, ErrNoResponse
		}
	}
}

type readWriter struct {
	io.Reader
	io.Writer
}

func NewLink(conn io.ReadWriteCloser) *Link {
	dr := &deadlineReader{r: conn}
	return &Link{
		Timeout: DefaultTimeout,
		conn:    conn,
		dr:      dr,
		srw:     common.NewSLIPReaderWriter(&readWriter{Reader: dr, Writer: conn}),
	}
}

// Open opens the bridge on the given serial port.
func Open(portName string, baudRate uint) (*Link, error) {
	glog.Infof("Opening %s...", portName)
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	s, err := serial.Open(serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudRate,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(interCharacterTimeout / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", portName)
	}
	// Deassert control lines, some bridges wire them to their own reset.
	s.SetDTR(false)
	s.SetRTS(false)
	// Drop anything left over from before.
	s.Flush()
	return NewLink(s), nil
}

func (l *Link) request(ctx context.Context, req []byte, respLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	glog.V(4).Infof(">> %s", hex.EncodeToString(req))
	if _, err := l.srw.Write(req); err != nil {
		return nil, errors.Annotatef(err, "failed to send request")
	}
	l.dr.deadline = time.Now().Add(l.Timeout)
	buf := make([]byte, 16)
	n, err := l.srw.Read(buf)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read response to 0x%02x", req[0])
	}
	resp := buf[:n]
	glog.V(4).Infof("<< %s", hex.EncodeToString(resp))
	if n < 1 {
		return nil, errors.Errorf("empty response to 0x%02x", req[0])
	}
	if resp[0] != statusOK {
		return nil, errors.Errorf("request 0x%02x failed, status 0x%02x", req[0], resp[0])
	}
	if n != 1+respLen {
		return nil, errors.Errorf("invalid response to 0x%02x: %s", req[0], hex.EncodeToString(resp))
	}
	return resp[1:], nil
}

func (l *Link) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.request(ctx, []byte{opInit}, 0)
	return errors.Annotatef(err, "init")
}

func (l *Link) ResetLink(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.request(ctx, []byte{opResetLink}, 0)
	return errors.Annotatef(err, "reset link")
}

func (l *Link) ReadDMI(ctx context.Context, addr uint8) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	resp, err := l.request(ctx, []byte{opRead, addr}, 4)
	if err != nil {
		return 0, errors.Annotatef(err, "read 0x%02x", addr)
	}
	return binary.LittleEndian.Uint32(resp), nil
}

func (l *Link) WriteDMI(ctx context.Context, addr uint8, value uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	req := []byte{opWrite, addr, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(req[2:], value)
	_, err := l.request(ctx, req, 0)
	return errors.Annotatef(err, "write 0x%02x", addr)
}

func (l *Link) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Trace(l.conn.Close())
}

var _ common.DebugLink = (*Link)(nil)
