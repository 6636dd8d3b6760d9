package collyfetcher

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// declaredContentTypeHeader carries the origin's Content-Type past colly.
const declaredContentTypeHeader = "X-Declared-Content-Type"

// rawCharsetTransport strips the charset parameter before colly sees the
// response. Colly transcodes any declared non-UTF-8 body on its own, which
// would hide the original bytes from textenc.Decode.
type rawCharsetTransport struct {
	base http.RoundTripper
}

func (t *rawCharsetTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("charset transport received nil request")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("charset transport base roundtrip: %w", err)
	}
	declared := resp.Header.Get("Content-Type")
	if declared == "" || !strings.Contains(strings.ToLower(declared), "charset") {
		return resp, nil
	}
	resp.Header.Set(declaredContentTypeHeader, declared)
	resp.Header.Set("Content-Type", mediaTypeOnly(declared))
	return resp, nil
}

func mediaTypeOnly(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		return strings.TrimSpace(contentType[:i])
	}
	return contentType
}

// restoreContentType returns a copy of headers with the origin's Content-Type.
func restoreContentType(src *http.Header) http.Header {
	if src == nil {
		return http.Header{}
	}
	headers := src.Clone()
	if declared := headers.Get(declaredContentTypeHeader); declared != "" {
		headers.Set("Content-Type", declared)
		headers.Del(declaredContentTypeHeader)
	}
	return headers
}
