package request

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// decodeContent undoes Content-Encoding. Unknown encodings pass through
// untouched and report false.
func decodeContent(contentEncoding string, body io.Reader) (io.ReadCloser, bool, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, false, err
		}
		return r, true, nil
	case "deflate", "x-deflate":
		return newDeflateReader(body), true, nil
	case "zstd":
		d, err := zstd.NewReader(body)
		if err != nil {
			return nil, false, err
		}
		return d.IOReadCloser(), true, nil
	default:
		return io.NopCloser(body), false, nil
	}
}

// newDeflateReader accepts both zlib-wrapped and raw deflate streams, since
// servers disagree on what "deflate" means.
func newDeflateReader(body io.Reader) io.ReadCloser {
	br := bufio.NewReader(body)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header) {
		if zr, err := zlib.NewReader(br); err == nil {
			return zr
		}
	}
	return flate.NewReader(br)
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// charsetOf returns the charset parameter of a Content-Type, defaulting to UTF-8.
func charsetOf(contentType string) string {
	if contentType == "" {
		return "utf-8"
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return "utf-8"
	}
	return strings.ToLower(params["charset"])
}

// decodeText converts body from charset to UTF-8. Unknown charsets are
// treated as UTF-8 and invalid sequences become U+FFFD.
func decodeText(charset string, body []byte) []byte {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		enc = unicode.UTF8
	}
	if enc == unicode.UTF8 || enc == encoding.Nop {
		return bytes.ToValidUTF8(body, []byte("�"))
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return bytes.ToValidUTF8(body, []byte("�"))
	}
	return out
}
