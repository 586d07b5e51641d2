// ABOUTME: Request and response values passed through the transport hooks
// ABOUTME: Requests are plain data so they can be captured and replayed exactly

package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Request describes one API call relative to a client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Retried is set once the call has been replayed after a credential
	// refresh. A retried request is never refreshed again.
	Retried bool

	// SkipRefresh exempts the call from refresh handling. Used by the
	// endpoints that issue or revoke credentials.
	SkipRefresh bool
}

// NewRequest builds a request, encoding body as JSON when it is not nil.
func NewRequest(method, path string, body interface{}) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req.Body = data
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// MultipartFile is one file part of a multipart upload.
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// NewMultipartRequest builds a multipart/form-data request from fields and files.
func NewMultipartRequest(method, path string, fields map[string]string, files ...MultipartFile) (*Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, fmt.Errorf("failed to write form file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
		Body:   buf.Bytes(),
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// Clone returns a deep copy suitable for replay.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Header = r.Header.Clone()
	if cp.Header == nil {
		cp.Header = make(http.Header)
	}
	if r.Query != nil {
		cp.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			cp.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Body != nil {
		cp.Body = append([]byte(nil), r.Body...)
	}
	return &cp
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
