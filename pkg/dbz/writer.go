package dbz

import (
	"fmt"
	"io"
	"os"

	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/record"
	"github.com/openticks/dbz/pkg/zstdio"
)

// Writer is one encode session: it writes the metadata header up front,
// streams records into the body with the header's declared compression, and
// on Close backfills the record count and time bounds when the sink is
// seekable.
type Writer struct {
	meta       *metadata.Metadata
	sink       io.Writer
	body       *record.Writer
	bodyCloser io.Closer
	rtype      record.RType
	rtypeKnown bool
	tsMin      uint64
	tsMax      uint64
	closed     bool
}

// NewWriter encodes meta to sink and prepares the body stream. The metadata
// is not retained mutably; the caller may reuse it.
//
// Zero time bounds mean "fill in for me": when the sink is seekable, Close
// replaces a zero Start or End with the observed event-timestamp bounds of
// the written records. A caller who means the epoch literally must write a
// nonzero value (any nanosecond within the epoch day) or use a non-seekable
// sink.
func NewWriter(sink io.Writer, meta *metadata.Metadata) (*Writer, error) {
	if err := meta.Encode(sink); err != nil {
		return nil, err
	}
	w := &Writer{meta: meta, sink: sink}
	w.rtype, w.rtypeKnown = record.RTypeForSchema(meta.Schema)

	var body io.Writer = sink
	if meta.Compression == metadata.CompressionZstd {
		zw, err := zstdio.NewWriter(sink)
		if err != nil {
			return nil, err
		}
		body = zw
		w.bodyCloser = zw
	}
	w.body = record.NewWriter(body)
	return w, nil
}

// Write appends one record to the body. Records whose type does not match
// the declared schema are rejected.
func (w *Writer) Write(rec record.Record) error {
	if w.rtypeKnown && rec.RType() != w.rtype {
		return fmt.Errorf("cannot write %s record to a %s stream", rec.RType(), w.meta.Schema)
	}
	if err := w.body.Write(rec); err != nil {
		return err
	}
	ts := rec.TsEvent()
	if w.body.Count() == 1 || ts < w.tsMin {
		w.tsMin = ts
	}
	if ts > w.tsMax {
		w.tsMax = ts
	}
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() uint64 { return w.body.Count() }

// Close flushes the compressed body and, when the sink supports seeking,
// rewrites the header's record count and any time bounds the caller left
// zero with the observed values. Nonzero bounds are never touched.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.bodyCloser != nil {
		if err := w.bodyCloser.Close(); err != nil {
			return fmt.Errorf("failed to flush body: %w", err)
		}
	}
	ws, ok := w.sink.(io.WriteSeeker)
	if !ok {
		return nil
	}
	start, end := w.meta.Start, w.meta.End
	if start == 0 {
		start = w.tsMin
	}
	if end == 0 && w.body.Count() > 0 {
		end = w.tsMax + 1
	}
	return metadata.UpdateEncoded(ws, start, end, w.meta.Limit, w.body.Count())
}

// WriteFile writes a complete DBZ file: header, then records. The record
// count and time bounds are backfilled on close.
func WriteFile(path string, meta *metadata.Metadata, records []record.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w, err := NewWriter(f, meta)
	if err != nil {
		f.Close()
		return err
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
