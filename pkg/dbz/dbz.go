// Package dbz is the session layer of the codec: it opens a DBZ stream,
// parses the metadata header, adapts the compressed body, and exposes the
// record iterator and text conversion built on the lower-level packages.
package dbz

import (
	"fmt"
	"io"
	"os"

	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
	"github.com/openticks/dbz/pkg/symbology"
	"github.com/openticks/dbz/pkg/textenc"
	"github.com/openticks/dbz/pkg/zstdio"
)

// Encoding selects the text output format of a conversion.
type Encoding int

const (
	EncodingCSV Encoding = iota
	EncodingJSON
)

func (e Encoding) String() string {
	switch e {
	case EncodingCSV:
		return "csv"
	case EncodingJSON:
		return "json"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding resolves an encoding name, "csv" or "json".
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "csv":
		return EncodingCSV, nil
	case "json":
		return EncodingJSON, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", name)
	}
}

// Reader is one decode session over a DBZ stream. The header is parsed
// eagerly at construction; records are pulled lazily through Records.
type Reader struct {
	meta     *metadata.Metadata
	warnings []metadata.Warning
	records  *record.Reader
	file     io.Closer
}

// NewReader parses the metadata header from src and prepares the body for
// iteration. The body's compression is sniffed, so streams whose header
// disagrees with their actual body encoding still decode.
func NewReader(src io.Reader) (*Reader, error) {
	meta, warnings, err := metadata.Read(src)
	if err != nil {
		return nil, err
	}
	body, err := zstdio.NewReader(src, zstdio.ModeAuto)
	if err != nil {
		return nil, err
	}
	return &Reader{
		meta:     meta,
		warnings: warnings,
		records:  record.NewReader(body),
	}, nil
}

// OpenFile opens path as a DBZ stream. Close releases the file handle.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = f
	return r, nil
}

// Metadata returns the parsed header.
func (r *Reader) Metadata() *metadata.Metadata { return r.meta }

// Warnings returns the recoverable inconsistencies found while parsing the
// header.
func (r *Reader) Warnings() []metadata.Warning { return r.warnings }

// Records returns the streaming record iterator over the body.
func (r *Reader) Records() *record.Reader { return r.records }

// Resolver builds a symbol resolver from the header's mapping table.
func (r *Reader) Resolver() *symbology.Resolver {
	return symbology.NewResolver(r.meta.Mappings)
}

// WriteTo drains the remaining records into w in the given text encoding and
// returns the number of records written. A record the encoder cannot render
// fails the conversion at that record.
func (r *Reader) WriteTo(w io.Writer, enc Encoding, opts textenc.Options) (uint64, error) {
	return r.WriteLimit(w, enc, opts, 0)
}

// WriteLimit is WriteTo with an upper bound on the number of records
// written. A max of zero means unlimited.
func (r *Reader) WriteLimit(w io.Writer, enc Encoding, opts textenc.Options, max uint64) (uint64, error) {
	var res *symbology.Resolver
	if opts.PrettySymbols {
		res = r.Resolver()
	}
	te, err := r.newEncoder(w, enc, res, opts)
	if err != nil {
		return 0, err
	}
	var n uint64
	for (max == 0 || n < max) && r.records.Next() {
		if err := te.EncodeRecord(r.records.Record()); err != nil {
			return n, err
		}
		n++
	}
	if err := r.records.Err(); err != nil {
		return n, err
	}
	return n, te.Close()
}

func (r *Reader) newEncoder(w io.Writer, enc Encoding, res *symbology.Resolver, opts textenc.Options) (textenc.Encoder, error) {
	switch enc {
	case EncodingCSV:
		return textenc.NewCSVEncoder(w, r.meta.Schema, res, opts)
	case EncodingJSON:
		return textenc.NewJSONEncoder(w, r.meta.Schema, res, opts)
	default:
		return nil, fmt.Errorf("unknown encoding %d", enc)
	}
}

// Close stops iteration and releases the decoder and, for file-backed
// sessions, the file handle.
func (r *Reader) Close() error {
	err := r.records.Close()
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Convert decodes the DBZ stream on src and writes its records to dst in
// the given encoding. It is the one-shot form of NewReader plus WriteTo.
func Convert(dst io.Writer, src io.Reader, enc Encoding, opts textenc.Options) (uint64, error) {
	r, err := NewReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.WriteTo(dst, enc, opts)
}
