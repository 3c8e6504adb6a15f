package request

import (
	"bytes"
	"io"
	"maps"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Response is the immutable handle delivered with http_success and http_failure.
type Response struct {
	statusCode int
	statusText string
	headers    map[string]string
	body       []byte
	binary     bool
	charset    string
}

func newResponse(resp *http.Response, body []byte, binary bool) *Response {
	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		headers[name] = strings.Join(values, ",")
	}
	if _, ok := headers["Content-Length"]; ok {
		headers["Content-Length"] = strconv.Itoa(len(body))
	}

	return &Response{
		statusCode: resp.StatusCode,
		statusText: reasonPhrase(resp),
		headers:    headers,
		body:       body,
		binary:     binary,
		charset:    charsetOf(resp.Header.Get("Content-Type")),
	}
}

// reasonPhrase returns the server's reason phrase, or the standard one if it sent none.
func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// StatusText returns the reason phrase.
func (r *Response) StatusText() string {
	return r.statusText
}

// Headers returns a copy of the response headers. Repeated headers are joined with ",".
func (r *Response) Headers() map[string]string {
	return maps.Clone(r.headers)
}

// Header returns a single header value.
func (r *Response) Header(name string) string {
	return r.headers[http.CanonicalHeaderKey(name)]
}

// Binary reports whether the body is returned undecoded.
func (r *Response) Binary() bool {
	return r.binary
}

// Charset returns the charset text-mode bodies are decoded from.
func (r *Response) Charset() string {
	return r.charset
}

// Body returns the response body. Text-mode bodies are decoded to UTF-8.
func (r *Response) Body() []byte {
	if r.binary {
		return bytes.Clone(r.body)
	}
	return decodeText(r.charset, r.body)
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body())
}

// Reader returns a fresh reader over Body.
func (r *Response) Reader() io.ReadSeeker {
	return bytes.NewReader(r.Body())
}

// MediaType returns the declared media type, or one sniffed from the body
// when the server did not declare any.
func (r *Response) MediaType() string {
	if ct := r.headers["Content-Type"]; ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(mimetype.Detect(r.body).String())
	return mt
}
