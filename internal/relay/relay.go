// Package relay forwards browser requests to the backend API origin,
// translating the cookie-held session token into a bearer authorization
// header. It is a single forward-and-relay exchange: no retries, no partial
// responses, and no error ever escapes as a panic.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrMissingPath is returned when a caller forwards without a backend path.
var ErrMissingPath = errors.New("relay: missing path")

type Relay struct {
	BaseURL string
	Client  *http.Client
}

func New(baseURL string) *Relay {
	if baseURL == "" {
		baseURL = "http://localhost:4000"
	}
	return &Relay{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// BodyKind selects exactly one content handling branch per request.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyJSON
	BodyMultipart
	BodyRaw
)

// Classify maps an incoming Content-Type header to a body kind.
func Classify(contentType string) BodyKind {
	if contentType == "" {
		return BodyNone
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return BodyRaw
	}
	switch mt {
	case "application/json":
		return BodyJSON
	case "multipart/form-data":
		return BodyMultipart
	}
	return BodyRaw
}

// Body describes the forwarded request body. JSON and raw bodies travel as
// the original bytes; multipart bodies travel as parsed fields and files and
// are rebuilt with a fresh boundary on the way out.
type Body struct {
	Kind        BodyKind
	ContentType string // incoming content type, used for BodyRaw
	Raw         []byte
	Fields      map[string][]string
	Files       []File
}

type File struct {
	Field   string
	Name    string
	Content []byte
}

// Result is the uniform outcome of a relay exchange. When the upstream
// response declares JSON, Payload holds the decoded value; otherwise Raw is
// passed through untouched.
type Result struct {
	Status      int
	ContentType string
	IsJSON      bool
	Payload     any
	Raw         []byte
}

// Forward re-issues the request against the backend origin. A non-empty token
// becomes an Authorization bearer header. path is backend-relative and may
// carry a query string.
func (r *Relay) Forward(ctx context.Context, method, path, token string, body Body) (Result, error) {
	if path == "" {
		return Result{}, ErrMissingPath
	}

	var reader io.Reader
	contentType := ""
	switch body.Kind {
	case BodyJSON:
		reader = bytes.NewReader(body.Raw)
		contentType = "application/json"
	case BodyMultipart:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for field, vals := range body.Fields {
			for _, v := range vals {
				if err := w.WriteField(field, v); err != nil {
					return Result{}, err
				}
			}
		}
		for _, f := range body.Files {
			fw, err := w.CreateFormFile(f.Field, f.Name)
			if err != nil {
				return Result{}, err
			}
			if _, err := fw.Write(f.Content); err != nil {
				return Result{}, err
			}
		}
		if err := w.Close(); err != nil {
			return Result{}, err
		}
		reader = buf
		// The boundary belongs to the writer we just built, never to the
		// incoming request.
		contentType = w.FormDataContentType()
	case BodyRaw:
		if len(body.Raw) > 0 {
			reader = bytes.NewReader(body.Raw)
		}
		contentType = body.ContentType
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return Result{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Raw:         raw,
	}
	if isJSON(res.ContentType) {
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return Result{}, fmt.Errorf("relay: decode upstream json: %w", err)
		}
		res.IsJSON = true
		res.Payload = payload
	}
	return res, nil
}

// Login forwards credentials to the backend login endpoint and extracts the
// bearer token when the backend reports success. An empty token with a nil
// error means the backend refused the login; the Result passes through so the
// caller can surface the backend's own messaging (e.g. pending approval).
func (r *Relay) Login(ctx context.Context, credentials []byte) (Result, string, error) {
	res, err := r.Forward(ctx, http.MethodPost, "/user/login", "", Body{Kind: BodyJSON, Raw: credentials})
	if err != nil {
		return Result{}, "", err
	}
	if res.Status < 200 || res.Status >= 300 {
		return res, "", nil
	}
	obj, ok := res.Payload.(map[string]any)
	if !ok {
		return res, "", nil
	}
	if success, _ := obj["success"].(bool); !success {
		return res, "", nil
	}
	token := ""
	if data, ok := obj["data"].(map[string]any); ok {
		token, _ = data["token"].(string)
	}
	if token == "" {
		token, _ = obj["token"].(string)
	}
	return res, token, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mt == "application/json"
}
