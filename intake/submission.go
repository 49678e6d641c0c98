package intake

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Canonical form field names. Clients may submit each field under a
// randomized name described by the field map in "m"; the canonical name is
// always accepted as fallback.
const (
	FieldText     = "text"
	FieldToken    = "token"
	FieldHoneypot = "honeypot"
	FieldFile     = "file"
	FieldReplyTo  = "reply_to"
	FieldMapField = "m"

	// CaptchaTokenHeader carries the captcha response token as an
	// alternative to the form field.
	CaptchaTokenHeader = "X-Captcha-Token"
)

// Submission is the typed value produced from one multipart request. It
// exists only for the duration of that request and is never persisted.
type Submission struct {
	Text         string
	CaptchaToken string
	Honeypot     string
	ReplyRef     string
	RateToken    string
	File         *File
}

// File is an uploaded attachment, declared metadata included. The declared
// MIME is a display hint only; policy runs on the sniffed type.
type File struct {
	Name         string
	DeclaredMIME string
	Data         []byte
}

// ParseSubmission decodes a multipart request into a Submission. The
// loosely-shaped boundary (obfuscated field names with canonical fallback,
// header fallback for the captcha token) is contained entirely here;
// everything past this point works with typed values.
func ParseSubmission(r *http.Request, maxMemory int64) (*Submission, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, fmt.Errorf("intake: parse form: %w", err)
	}
	names := decodeFieldMap(r.FormValue(FieldMapField))
	get := func(canonical string) string {
		if obf := names[canonical]; obf != "" {
			if v := r.FormValue(obf); v != "" {
				return v
			}
		}
		return r.FormValue(canonical)
	}

	sub := &Submission{
		Text:         strings.TrimSpace(get(FieldText)),
		CaptchaToken: get(FieldToken),
		Honeypot:     get(FieldHoneypot),
		ReplyRef:     strings.TrimSpace(get(FieldReplyTo)),
	}
	if sub.CaptchaToken == "" {
		sub.CaptchaToken = r.Header.Get(CaptchaTokenHeader)
	}

	fh := formFile(r, names[FieldFile])
	if fh == nil {
		fh = formFile(r, FieldFile)
	}
	if fh != nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("intake: open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("intake: read upload: %w", err)
		}
		sub.File = &File{
			Name:         fh.Filename,
			DeclaredMIME: fh.Header.Get("Content-Type"),
			Data:         data,
		}
	}
	return sub, nil
}

func formFile(r *http.Request, field string) *multipart.FileHeader {
	if field == "" || r.MultipartForm == nil {
		return nil
	}
	if fhs := r.MultipartForm.File[field]; len(fhs) > 0 {
		return fhs[0]
	}
	return nil
}

func decodeFieldMap(encoded string) map[string]string {
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var m map[string]string
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

// FieldMap assigns per-session randomized names to the canonical form
// fields. It is a low-value obstruction against naive scrapers, not a
// security boundary: the canonical names are still accepted as fallback,
// which largely defeats the renaming, but the frontend contract carries it.
type FieldMap map[string]string

// NewFieldMap generates fresh random names for every obfuscatable field.
func NewFieldMap() FieldMap {
	m := make(FieldMap, 4)
	for _, canonical := range []string{FieldText, FieldToken, FieldHoneypot, FieldFile} {
		m[canonical] = "f" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return m
}

// Encode returns the base64 JSON form that clients submit back in "m".
func (m FieldMap) Encode() string {
	raw, _ := json.Marshal(m)
	return base64.StdEncoding.EncodeToString(raw)
}
