package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

type formFile struct {
	field    string
	filename string
	data     []byte
}

// Form is a multipart/form-data request body
type Form struct {
	fields [][2]string
	files  []formFile
}

// NewForm creates an empty form
func NewForm() *Form {
	return &Form{}
}

// Field appends a text field
func (f *Form) Field(name, value string) *Form {
	f.fields = append(f.fields, [2]string{name, value})
	return f
}

// Fields appends a repeated text field
func (f *Form) Fields(name string, values ...string) *Form {
	for _, v := range values {
		f.Field(name, v)
	}
	return f
}

// File appends a file part
func (f *Form) File(field, filename string, data []byte) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, data: data})
	return f
}

// Values returns the text fields named name in order
func (f *Form) Values(name string) []string {
	var out []string
	for _, kv := range f.fields {
		if kv[0] == name {
			out = append(out, kv[1])
		}
	}
	return out
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", kv[0], err)
		}
	}
	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part %s: %w", file.field, err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part %s: %w", file.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
