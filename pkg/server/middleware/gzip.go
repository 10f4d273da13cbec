package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strconv"
	"strings"
)

// Gzip buffers the response and compresses it when the client accepts gzip
// and the body reaches minSize bytes. Small bodies go out uncompressed since
// the gzip header overhead outweighs the savings.
func Gzip(minSize, level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Upgrade") != "" ||
				!strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, req)
				return
			}

			buf := &bufferedResponse{header: make(http.Header), status: http.StatusOK}
			next.ServeHTTP(buf, req)

			copyHeader(w.Header(), buf.header)
			w.Header().Add("Vary", "Accept-Encoding")

			body := buf.body.Bytes()
			if len(body) < minSize || buf.header.Get("Content-Encoding") != "" {
				w.Header().Set("Content-Length", strconv.Itoa(len(body)))
				w.WriteHeader(buf.status)
				_, _ = w.Write(body)
				return
			}

			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Del("Content-Length")
			w.WriteHeader(buf.status)

			gz, err := gzip.NewWriterLevel(w, level)
			if err != nil {
				gz = gzip.NewWriter(w)
			}
			_, _ = gz.Write(body)
			_ = gz.Close()
		})
	}
}

type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	b.status = status
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
