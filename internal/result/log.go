package result

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"unicode/utf8"
)

// LogEncoding tags how a ResultRecord's log blob is stored.
type LogEncoding string

const (
	LogPlain LogEncoding = "plain"
	LogGzip  LogEncoding = "gzip"
)

// EncodedLog is the tagged plain|gzip blob spec.md §4.4 names. Decode
// always returns UTF-8-lossy text, mirroring original_source's
// EncodedLog::decode() (which uses flate2::read::GzDecoder then
// String::from_utf8_lossy).
type EncodedLog struct {
	Encoding LogEncoding
	Bytes    []byte
}

func PlainLog(b []byte) EncodedLog { return EncodedLog{Encoding: LogPlain, Bytes: b} }

// GzipLog compresses b and tags it gzip. Callers needing a size cap
// (sandbox.build-log-max-size / sandbox.build-log-max-lines, per spec.md
// §6) should truncate before calling this.
func GzipLog(b []byte) (EncodedLog, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return EncodedLog{}, fmt.Errorf("result: gzip log: %w", err)
	}
	if err := w.Close(); err != nil {
		return EncodedLog{}, fmt.Errorf("result: gzip log: %w", err)
	}
	return EncodedLog{Encoding: LogGzip, Bytes: buf.Bytes()}, nil
}

// Decode returns UTF-8-lossy text regardless of encoding.
func (l EncodedLog) Decode() (string, error) {
	switch l.Encoding {
	case LogPlain:
		return toUTF8Lossy(l.Bytes), nil
	case LogGzip:
		r, err := gzip.NewReader(bytes.NewReader(l.Bytes))
		if err != nil {
			return "", fmt.Errorf("result: decode gzip log: %w", err)
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("result: decode gzip log: %w", err)
		}
		return toUTF8Lossy(raw), nil
	default:
		return "", fmt.Errorf("result: unknown log encoding %q", l.Encoding)
	}
}

// toUTF8Lossy mirrors Rust's String::from_utf8_lossy: valid bytes pass
// through, invalid sequences become U+FFFD.
func toUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string(bytes.ToValidUTF8(b, []byte("�")))
}
