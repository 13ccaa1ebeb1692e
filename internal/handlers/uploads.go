package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
)

// maxUploadBytes bounds a whole multipart request.
const maxUploadBytes = 1 << 30

// multipartMemory is how much of a form is held in memory before spilling to disk.
const multipartMemory = 8 << 20

// spooled holds the local copies of uploaded files, keyed by form field.
type spooled struct {
	paths map[string]string
}

func (s spooled) path(field string) string { return s.paths[field] }

// cleanup removes every spooled file.
func (s spooled) cleanup() {
	for _, p := range s.paths {
		_ = os.Remove(p)
	}
}

// spool parses a multipart request and copies the first file of each named field into dir.
// Missing fields are skipped; callers validate what they require.
func spool(w http.ResponseWriter, r *http.Request, op, dir string, fields ...string) (spooled, error) {
	out := spooled{paths: make(map[string]string, len(fields))}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return out, apperr.Wrapf(apperr.InvalidInput, op, err, "upload too large")
		}
		return out, apperr.Wrapf(apperr.InvalidInput, op, err, "expected a multipart form")
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	for _, field := range fields {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		path, err := spoolFile(dir, headers[0])
		if err != nil {
			out.cleanup()
			return spooled{}, apperr.Wrapf(apperr.Internal, op, err, "failed to store %s", field)
		}
		out.paths[field] = path
	}
	return out, nil
}

func spoolFile(dir string, header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close spool file: %w", err)
	}
	return dst.Name(), nil
}
