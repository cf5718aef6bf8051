package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo"
)

const (
	fingerprintField = "fingerprint"
	multipartMemory  = 32 << 20
)

var (
	errNoFile          = errors.New("no fingerprint file provided")
	errInvalidFileType = errors.New("invalid file type, please upload an image")
	errEmptyFile       = errors.New("empty file")
	errFileTooLarge    = errors.New("file is too large")
	errMalformedUpload = errors.New("multipart form is malformed")
)

var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
}

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/bmp", "image/tiff"}

// readImage loads an uploaded fingerprint. The file name must carry an image
// extension and the content must sniff as one of the same formats.
func readImage(c echo.Context, field string, maxBytes int64) ([]byte, error) {
	if err := c.Request().ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedUpload, err)
	}

	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errNoFile
		}

		return nil, fmt.Errorf("%w: %v", errMalformedUpload, err)
	}

	if !allowedImageExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
		return nil, errInvalidFileType
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, errFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := io.Reader(f)
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	switch {
	case len(data) == 0:
		return nil, errEmptyFile
	case maxBytes > 0 && int64(len(data)) > maxBytes:
		return nil, errFileTooLarge
	case !mimetype.EqualsAny(mimetype.Detect(data).String(), allowedImageTypes...):
		return nil, errInvalidFileType
	}

	return data, nil
}

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, errInvalidFileType), errors.Is(err, errEmptyFile),
		errors.Is(err, errMalformedUpload):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func writeUploadError(c echo.Context, err error) error {
	reason := err.Error()
	if errors.Is(err, errMalformedUpload) {
		reason = errMalformedUpload.Error()
	}
	if e := c.JSON(uploadErrorStatus(err), errorResponse{reason}); e != nil {
		return e
	}

	return err
}
