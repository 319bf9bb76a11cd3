package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
)

// FilePart is a file field of a multipart body
type FilePart struct {
	Field    string
	FileName string
	Content  io.Reader
}

// MultipartBody is a form payload with optional file uploads. The request
// helper sends it with the writer's own content type instead of JSON.
type MultipartBody struct {
	Fields map[string]string
	Files  []FilePart
}

// NewMultipartBody creates an empty multipart body
func NewMultipartBody() *MultipartBody {
	return &MultipartBody{Fields: map[string]string{}}
}

// Set adds a plain form field
func (b *MultipartBody) Set(field, value string) *MultipartBody {
	if b.Fields == nil {
		b.Fields = map[string]string{}
	}
	b.Fields[field] = value
	return b
}

// AddFile adds a file read from content
func (b *MultipartBody) AddFile(field, fileName string, content io.Reader) *MultipartBody {
	b.Files = append(b.Files, FilePart{Field: field, FileName: fileName, Content: content})
	return b
}

// AddFileFromPath reads a local file into the body
func (b *MultipartBody) AddFileFromPath(field, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	b.AddFile(field, filepath.Base(path), bytes.NewReader(data))
	return nil
}

// encode writes the body and returns it with its content type
func (b *MultipartBody) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, b.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	for _, f := range b.Files {
		part, err := w.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("copy %s: %w", f.FileName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
