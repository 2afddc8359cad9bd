package labbcat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// multipartForm is an ordered list of multipart/form-data fields. File parts
// are read from disk while the request body is being sent.
type multipartForm struct {
	fields []formField
}

type formField struct {
	name     string
	value    string
	path     string
	fileName string
	content  []byte
}

func newMultipartForm() *multipartForm {
	return &multipartForm{}
}

// set adds a string field.
func (f *multipartForm) set(name, value string) *multipartForm {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// setAll adds one string field per value, all with the same name.
func (f *multipartForm) setAll(name string, values []string) *multipartForm {
	for _, v := range values {
		f.set(name, v)
	}
	return f
}

// file adds a file part whose content is read from path.
func (f *multipartForm) file(name, path string) *multipartForm {
	f.fields = append(f.fields, formField{name: name, path: path, fileName: filepath.Base(path)})
	return f
}

// content adds a file part with in-memory content.
func (f *multipartForm) content(name, fileName string, content []byte) *multipartForm {
	f.fields = append(f.fields, formField{name: name, fileName: fileName, content: content})
	return f
}

// check makes sure every file part can be read, so that a missing file is
// reported before anything is sent.
func (f *multipartForm) check() error {
	for _, field := range f.fields {
		if field.path == "" {
			continue
		}
		info, err := os.Stat(field.path)
		if err != nil {
			return fmt.Errorf("cannot upload %s: %w", field.path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("cannot upload %s: is a directory", field.path)
		}
	}
	return nil
}

// write encodes the form. It stops with ctx.Err() as soon as ctx is done.
func (f *multipartForm) write(ctx context.Context, mw *multipart.Writer) error {
	w := &contextWriter{ctx: ctx}
	for _, field := range f.fields {
		if err := ctx.Err(); err != nil {
			return err
		}

		if field.path == "" && field.content == nil {
			if err := mw.WriteField(field.name, field.value); err != nil {
				return err
			}
			continue
		}

		part, err := mw.CreatePart(partHeader(field.name, field.fileName))
		if err != nil {
			return err
		}
		w.w = part

		if field.content != nil {
			if _, err := io.Copy(w, bytes.NewReader(field.content)); err != nil {
				return err
			}
			continue
		}

		file, err := os.Open(field.path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, file)
		file.Close()
		if err != nil {
			return err
		}
	}
	return mw.Close()
}

// contextWriter fails writes once its context is done, so that a cancelled
// upload stops between chunks.
type contextWriter struct {
	ctx context.Context
	w   io.Writer
}

func (cw *contextWriter) Write(p []byte) (int, error) {
	if err := cw.ctx.Err(); err != nil {
		return 0, err
	}
	return cw.w.Write(p)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func partHeader(name, fileName string) textproto.MIMEHeader {
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(fileName)))
	h.Set("Content-Type", contentType)
	return h
}

// newMultipartRequest creates a POST request whose multipart body is streamed
// from form as the request is sent.
func (c *Client) newMultipartRequest(ctx context.Context, resource string, form *multipartForm) (*http.Request, error) {
	if err := form.check(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := c.newRequest(ctx, http.MethodPost, resource, nil, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	go func() {
		pw.CloseWithError(form.write(ctx, mw))
	}()

	return req, nil
}
