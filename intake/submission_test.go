package intake

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formBuilder struct {
	t   *testing.T
	buf bytes.Buffer
	w   *multipart.Writer
}

func newForm(t *testing.T) *formBuilder {
	fb := &formBuilder{t: t}
	fb.w = multipart.NewWriter(&fb.buf)
	return fb
}

func (fb *formBuilder) field(name, value string) *formBuilder {
	require.NoError(fb.t, fb.w.WriteField(name, value))
	return fb
}

func (fb *formBuilder) file(field, name string, data []byte) *formBuilder {
	fw, err := fb.w.CreateFormFile(field, name)
	require.NoError(fb.t, err)
	_, err = fw.Write(data)
	require.NoError(fb.t, err)
	return fb
}

func (fb *formBuilder) request() *http.Request {
	require.NoError(fb.t, fb.w.Close())
	req := httptest.NewRequest(http.MethodPost, "/submit", &fb.buf)
	req.Header.Set("Content-Type", fb.w.FormDataContentType())
	return req
}

func TestParseSubmissionCanonicalFields(t *testing.T) {
	req := newForm(t).
		field(FieldText, "  hello  ").
		field(FieldToken, "captcha-resp").
		field(FieldReplyTo, "cu-12").
		request()

	sub, err := ParseSubmission(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "hello", sub.Text)
	assert.Equal(t, "captcha-resp", sub.CaptchaToken)
	assert.Equal(t, "cu-12", sub.ReplyRef)
	assert.Empty(t, sub.Honeypot)
	assert.Nil(t, sub.File)
}

func TestParseSubmissionObfuscatedNamesWin(t *testing.T) {
	fm := NewFieldMap()
	req := newForm(t).
		field(FieldMapField, fm.Encode()).
		field(fm[FieldText], "from obfuscated").
		field(FieldText, "from canonical").
		field(fm[FieldHoneypot], "tripped").
		request()

	sub, err := ParseSubmission(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "from obfuscated", sub.Text)
	assert.Equal(t, "tripped", sub.Honeypot)
}

func TestParseSubmissionCanonicalFallback(t *testing.T) {
	fm := NewFieldMap()
	req := newForm(t).
		field(FieldMapField, fm.Encode()).
		field(FieldText, "canonical only").
		request()

	sub, err := ParseSubmission(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "canonical only", sub.Text)
}

func TestParseSubmissionBadFieldMapIgnored(t *testing.T) {
	req := newForm(t).
		field(FieldMapField, "not base64 at all!!").
		field(FieldText, "still works").
		request()

	sub, err := ParseSubmission(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "still works", sub.Text)
}

func TestParseSubmissionCaptchaHeaderFallback(t *testing.T) {
	req := newForm(t).field(FieldText, "hi").request()
	req.Header.Set(CaptchaTokenHeader, "header-token")

	sub, err := ParseSubmission(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "header-token", sub.CaptchaToken)
}

func TestParseSubmissionFile(t *testing.T) {
	fm := NewFieldMap()
	data := []byte("%PDF-1.4 content")
	req := newForm(t).
		field(FieldMapField, fm.Encode()).
		file(fm[FieldFile], "paper.pdf", data).
		request()

	sub, err := ParseSubmission(req, 1<<20)
	require.NoError(t, err)
	require.NotNil(t, sub.File)
	assert.Equal(t, "paper.pdf", sub.File.Name)
	assert.Equal(t, data, sub.File.Data)
}

func TestFieldMapCoversAllObfuscatableFields(t *testing.T) {
	fm := NewFieldMap()
	for _, canonical := range []string{FieldText, FieldToken, FieldHoneypot, FieldFile} {
		assert.NotEmpty(t, fm[canonical])
		assert.NotEqual(t, canonical, fm[canonical])
	}

	// Two sessions never share names.
	other := NewFieldMap()
	assert.NotEqual(t, fm[FieldText], other[FieldText])
}
