package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
)

// File is one part of a multipart upload
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// Request describes one backend call. Endpoint is relative to the client's base URL,
// e.g. "/api/fund-requests". When Files is set the body is multipart and Form supplies
// the remaining fields; otherwise Body (if any) is JSON encoded. Anonymous requests never
// carry the bearer token, so their failures are not treated as session expiry.
type Request struct {
	Method    string
	Endpoint  string
	Query     url.Values
	Body      any
	Form      map[string]string
	Files     []File
	Anonymous bool
}

func (r *Request) isMultipart() bool {
	return len(r.Files) > 0
}

// encodeBody returns the request body and the content type to send with it. For multipart
// bodies the content type comes from the multipart writer so it carries the boundary.
func (r *Request) encodeBody() (io.Reader, string, error) {
	if r.isMultipart() {
		return r.encodeMultipart()
	}
	if r.Body == nil {
		return nil, "", nil
	}
	raw, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("[Request] encode body for %s: %w", r.Endpoint, err)
	}
	return bytes.NewReader(raw), "application/json", nil
}

func (r *Request) encodeMultipart() (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range r.Form {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("[Request] write field %s: %w", name, err)
		}
	}
	for _, f := range r.Files {
		part, err := createFilePart(mw, f)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("[Request] copy file %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("[Request] close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func createFilePart(mw *multipart.Writer, f File) (io.Writer, error) {
	if f.ContentType == "" {
		return mw.CreateFormFile(f.Field, f.Name)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
	h.Set("Content-Type", f.ContentType)
	return mw.CreatePart(h)
}
