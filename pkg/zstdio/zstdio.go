// Package zstdio wraps raw byte sources behind a uniform readable stream,
// transparently inflating zstd frames when present and passing bytes through
// unchanged otherwise. Decoder buffers are released on Close regardless of
// how far the consumer read.
package zstdio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Mode selects how the adapter treats the source.
type Mode int

const (
	// ModeAuto sniffs the zstd frame magic and inflates only when present.
	ModeAuto Mode = iota
	// ModeNone passes bytes through unchanged.
	ModeNone
	// ModeZstd requires a zstd stream and fails on anything else.
	ModeZstd
)

// frameMagic is the little-endian zstd frame magic 0xFD2FB528.
var frameMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// DecompressionError reports a malformed compressed frame. It is fatal for
// the stream; truncated output is never silently returned.
type DecompressionError struct {
	Err error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompression failed: %v", e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// NewReader wraps src per mode and returns a stream of plain bytes. The
// returned Closer releases only the adapter's own state; closing the
// underlying source remains the caller's job.
func NewReader(src io.Reader, mode Mode) (io.ReadCloser, error) {
	switch mode {
	case ModeNone:
		return &passthrough{r: src}, nil
	case ModeZstd:
		return newZstdReader(src)
	case ModeAuto:
		br := bufio.NewReader(src)
		magic, err := br.Peek(len(frameMagic))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to sniff stream: %w", err)
		}
		// Input shorter than a frame magic cannot be compressed anyway; let
		// it pass through.
		if bytes.Equal(magic, frameMagic) {
			return newZstdReader(br)
		}
		return &passthrough{r: br}, nil
	default:
		return nil, fmt.Errorf("unknown decompression mode %d", mode)
	}
}

// NewWriter returns a zstd compressor for the encode side. Close flushes the
// final frame and releases encoder state.
func NewWriter(dst io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	return enc, nil
}

type passthrough struct {
	r io.Reader
}

func (p *passthrough) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *passthrough) Close() error { return nil }

type zstdReader struct {
	dec    *zstd.Decoder
	closed bool
}

func newZstdReader(src io.Reader) (*zstdReader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, &DecompressionError{Err: err}
	}
	return &zstdReader{dec: dec}, nil
}

func (z *zstdReader) Read(b []byte) (int, error) {
	if z.closed {
		return 0, io.EOF
	}
	n, err := z.dec.Read(b)
	if err != nil && err != io.EOF {
		return n, &DecompressionError{Err: err}
	}
	return n, err
}

func (z *zstdReader) Close() error {
	if !z.closed {
		z.closed = true
		z.dec.Close()
	}
	return nil
}
