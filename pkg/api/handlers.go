package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/openticks/dbz/pkg/codec"
	"github.com/openticks/dbz/pkg/dbz"
	"github.com/openticks/dbz/pkg/metadata"
	"github.com/openticks/dbz/pkg/textenc"
	"github.com/openticks/dbz/pkg/zstdio"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleMetadata parses the header of an uploaded DBZ stream and returns it
// as JSON. The record body is not read.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	body := s.uploadBody(w, r)
	defer body.close()

	meta, warnings, err := metadata.Read(body)
	if err != nil {
		sendError(w, err.Error(), decodeStatus(err))
		return
	}
	s.metrics.RecordHeaderWarnings(len(warnings))
	sendSuccess(w, newMetadataResponse(meta, warnings))
}

// handleConvert decodes an uploaded DBZ stream and streams its records back
// as CSV or newline-delimited JSON. Output begins as soon as the header
// parses; a body error after that point truncates the response and is
// reported through logs and metrics.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	enc, opts, ok := conversionParams(w, r)
	if !ok {
		return
	}

	body := s.uploadBody(w, r)
	defer body.close()

	reader, err := dbz.NewReader(body)
	if err != nil {
		s.metrics.RecordConversion(enc.String(), 0, false, time.Since(start))
		sendError(w, err.Error(), decodeStatus(err))
		return
	}
	defer reader.Close()
	s.metrics.RecordHeaderWarnings(len(reader.Warnings()))

	switch enc {
	case dbz.EncodingJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
	default:
		w.Header().Set("Content-Type", "text/csv")
	}
	w.Header().Set("X-Dbz-Dataset", reader.Metadata().Dataset)
	w.Header().Set("X-Dbz-Schema", reader.Metadata().Schema.String())

	n, err := reader.WriteLimit(w, enc, opts, s.config.MaxRecords)
	if err != nil {
		s.metrics.RecordConversion(enc.String(), n, false, time.Since(start))
		if n == 0 {
			sendError(w, err.Error(), decodeStatus(err))
			return
		}
		// Headers are already on the wire; all that remains is to cut the
		// response short and record what happened.
		zerolog.Ctx(r.Context()).Error().Err(err).Uint64("records", n).Msg("conversion aborted mid-stream")
		return
	}
	s.metrics.RecordConversion(enc.String(), n, true, time.Since(start))
}

// conversionParams reads the encoding and rendering options from the query
// string, responding with a 400 on a bad value.
func conversionParams(w http.ResponseWriter, r *http.Request) (dbz.Encoding, textenc.Options, bool) {
	q := r.URL.Query()
	name := q.Get("encoding")
	if name == "" {
		name = "csv"
	}
	enc, err := dbz.ParseEncoding(name)
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return 0, textenc.Options{}, false
	}
	opts := textenc.Options{
		PrettySymbols: q.Get("pretty_symbols") == "true",
		PrettyTimes:   q.Get("pretty_times") == "true",
		HeaderRow:     q.Get("header") == "true",
	}
	return enc, opts, true
}

// uploadBody wraps the request body with the configured size cap and an
// upload-size counter.
func (s *Server) uploadBody(w http.ResponseWriter, r *http.Request) *countingBody {
	body := r.Body
	if s.config.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, body, s.config.MaxUploadBytes)
	}
	return &countingBody{rc: body, metrics: s.metrics}
}

type countingBody struct {
	rc      io.ReadCloser
	metrics *Metrics
	n       int64
}

func (c *countingBody) Read(b []byte) (int, error) {
	n, err := c.rc.Read(b)
	c.n += int64(n)
	return n, err
}

func (c *countingBody) close() {
	c.metrics.RecordUpload(c.n)
	c.rc.Close()
}

// decodeStatus maps codec errors to HTTP statuses: anything wrong with the
// uploaded bytes is the client's problem.
func decodeStatus(err error) int {
	var de *zstdio.DecompressionError
	switch {
	case errors.Is(err, codec.ErrMalformed),
		errors.Is(err, metadata.ErrUnsupportedVersion),
		errors.As(err, &de):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
