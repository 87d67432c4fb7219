// Copyright (c) 2020-2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package pcap writes captured IEEE 802.15.4 frames to PCAP files, either as plain frames (DLT 195) or
// with a wpan-tap header (DLT 283) carrying channel, RSS and start-of-frame time.
package pcap

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	. "github.com/openthread/ot-tsch/types"
)

// Format is the link-layer encapsulation of a capture file.
type Format int

const (
	FormatOff Format = iota
	FormatWpan
	FormatWpanTap
)

func (f Format) String() string {
	switch f {
	case FormatOff:
		return "off"
	case FormatWpan:
		return "wpan"
	case FormatWpanTap:
		return "wpan-tap"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	for _, f := range []Format{FormatOff, FormatWpan, FormatWpanTap} {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return FormatOff, errors.Errorf("invalid pcap format: %s", s)
}

func (f Format) linkType() uint32 {
	if f == FormatWpanTap {
		return dltIeee802154Tap
	}
	return dltIeee802154
}

const (
	dltIeee802154       = 195
	pcapMagicNumber     = 0xA1B2C3D4
	pcapVersionMajor    = 2
	pcapVersionMinor    = 4
	pcapSnapLen         = 256
	pcapFileHeaderSize  = 24
	pcapFrameHeaderSize = 16
)

// Frame is one captured frame. Data is the PSDU including FCS.
type Frame struct {
	Timestamp uint64 // us
	Data      []byte
	Channel   ChannelId
	Rssi      float32
}

// Writer appends frames to a PCAP stream.
type Writer struct {
	w      io.Writer
	format Format
	frames int
}

// Create creates (or truncates) a capture file.
func Create(filename string, format Format) (*Writer, error) {
	if format != FormatWpan && format != FormatWpanTap {
		return nil, errors.Errorf("cannot create %s capture", format)
	}
	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	pw, err := NewWriter(fd, format)
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	return pw, nil
}

// NewWriter writes the file header to w.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	pw := &Writer{
		w:      w,
		format: format,
	}
	var header [pcapFileHeaderSize]byte
	le := binary.LittleEndian
	le.PutUint32(header[0:], pcapMagicNumber)
	le.PutUint16(header[4:], pcapVersionMajor)
	le.PutUint16(header[6:], pcapVersionMinor)
	le.PutUint32(header[16:], pcapSnapLen)
	le.PutUint32(header[20:], format.linkType())
	if _, err := w.Write(header[:]); err != nil {
		return nil, errors.Wrap(err, "write pcap header")
	}
	return pw, nil
}

func (pw *Writer) Format() Format {
	return pw.format
}

// Frames returns the number of frames written.
func (pw *Writer) Frames() int {
	return pw.frames
}

func (pw *Writer) WriteFrame(f Frame) error {
	var tap []byte
	if pw.format == FormatWpanTap {
		tap = tapHeader(f)
	}

	var header [pcapFrameHeaderSize]byte
	le := binary.LittleEndian
	le.PutUint32(header[0:], uint32(f.Timestamp/1000000))
	le.PutUint32(header[4:], uint32(f.Timestamp%1000000))
	n := uint32(len(tap) + len(f.Data))
	le.PutUint32(header[8:], n)
	le.PutUint32(header[12:], n)

	buf := make([]byte, 0, pcapFrameHeaderSize+int(n))
	buf = append(buf, header[:]...)
	buf = append(buf, tap...)
	buf = append(buf, f.Data...)
	if _, err := pw.w.Write(buf); err != nil {
		return errors.Wrap(err, "write pcap frame")
	}
	pw.frames++
	return nil
}

// Sync flushes the underlying file, if it is one.
func (pw *Writer) Sync() error {
	if s, ok := pw.w.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (pw *Writer) Close() error {
	if c, ok := pw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
