// Package shared holds helpers used by every handler group.
package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mandalnilabja/ocrway/internal/batch"
	"github.com/mandalnilabja/ocrway/internal/types"
)

// multipartOverhead is allowed on top of the file ceiling for form fields
// and part headers.
const multipartOverhead = 1 << 20

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONError maps err to an API error response.
func WriteJSONError(w http.ResponseWriter, err error) {
	types.WriteFromError(w, err)
}

// DecodeJSON decodes a request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return types.Invalidf("invalid request body")
	}
	return nil
}

// IsValidAdminPassword validates the admin password format.
// Password must be alphanumeric (a-z, A-Z, 0-9) with minimum 8 characters.
func IsValidAdminPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	for _, c := range password {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// Upload is one accepted image part.
type Upload struct {
	Filename string
	Data     []byte
	MIME     string
}

// ReadImage reads the single image part named field. The body is capped
// before parsing so oversized uploads are rejected without buffering them.
func ReadImage(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		return nil, formError(err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, types.Invalidf("missing file field %q", field)
	}
	defer file.Close()

	return readPart(file, header, maxBytes)
}

// ReadImages reads every part named field as batch items. Oversized or
// non-image parts become pre-failed items; at most limit parts are read.
func ReadImages(w http.ResponseWriter, r *http.Request, field string, maxBytes int64, limit int) ([]batch.Item, error) {
	total := int64(limit)*maxBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, total)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		return nil, formError(err)
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, batch.ErrNoItems
	}
	if len(headers) > limit {
		return nil, fmt.Errorf("%w: maximum %d, got %d", batch.ErrTooManyItems, limit, len(headers))
	}

	items := make([]batch.Item, 0, len(headers))
	for _, header := range headers {
		item := batch.Item{Filename: header.Filename}
		upload, err := openPart(header, maxBytes)
		if err != nil {
			item.Err = &batch.ItemError{Kind: types.Kind(err), Err: err}
		} else {
			item.Data = upload.Data
		}
		items = append(items, item)
	}
	return items, nil
}

func openPart(header *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open part: %w", err)
	}
	defer file.Close()
	return readPart(file, header, maxBytes)
}

func readPart(file io.Reader, header *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	if header.Size > maxBytes {
		return nil, fmt.Errorf("%w. Maximum size: %dMB", types.ErrFileTooLarge, maxBytes>>20)
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w. Maximum size: %dMB", types.ErrFileTooLarge, maxBytes>>20)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w, got %s", types.ErrNotImage, mime.String())
	}
	return &Upload{Filename: header.Filename, Data: data, MIME: mime.String()}, nil
}

func formError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return types.Invalidf("invalid multipart form: %v", err)
}

// Param returns a query value, or a form value once the form has been
// parsed. It never triggers body parsing itself.
func Param(r *http.Request, name string) string {
	if r.Form != nil {
		return r.Form.Get(name)
	}
	return r.URL.Query().Get(name)
}

// ParamInt parses an integer parameter, returning def when absent.
func ParamInt(r *http.Request, name string, def int) (int, error) {
	v := Param(r, name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, types.Invalidf("%s must be an integer", name)
	}
	return n, nil
}

// ParamFloat parses a float parameter, returning def when absent.
func ParamFloat(r *http.Request, name string, def float64) (float64, error) {
	v := Param(r, name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, types.Invalidf("%s must be a number", name)
	}
	return f, nil
}

// ParamBool parses a boolean parameter, returning def when absent.
func ParamBool(r *http.Request, name string, def bool) (bool, error) {
	v := Param(r, name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, types.Invalidf("%s must be true or false", name)
	}
	return b, nil
}
