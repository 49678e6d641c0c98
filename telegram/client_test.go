package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBotAPI records the last call per method and serves canned envelopes.
type fakeBotAPI struct {
	t       *testing.T
	mux     *http.ServeMux
	nextID  int64
	lastReq map[string]*http.Request
	fail    map[string]string // method -> error description
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *Client) {
	f := &fakeBotAPI{
		t:       t,
		mux:     http.NewServeMux(),
		nextID:  100,
		lastReq: make(map[string]*http.Request),
		fail:    make(map[string]string),
	}
	f.mux.HandleFunc("/bottest-token/", f.serve)
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return f, NewClient("test-token", WithBaseURL(srv.URL))
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		require.NoError(f.t, r.ParseMultipartForm(1<<22))
	} else {
		require.NoError(f.t, r.ParseForm())
	}
	f.lastReq[method] = r

	if desc, ok := f.fail[method]; ok {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 400, "description": desc,
		})
		return
	}

	f.nextID++
	result := map[string]any{"message_id": f.nextID}
	switch method {
	case "forwardMessage":
		result["caption"] = "cu-7\n\nforwarded caption"
		result["document"] = map[string]any{"file_id": "doc1"}
	case "editMessageText", "editMessageCaption", "deleteMessage":
		// Bot API returns True for these; the client ignores the result.
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (f *fakeBotAPI) formValue(method, field string) string {
	r := f.lastReq[method]
	require.NotNil(f.t, r, method)
	return r.FormValue(field)
}

func TestSendMessage(t *testing.T) {
	f, c := newFakeBotAPI(t)

	msg, err := c.SendMessage(context.Background(), "@channel", "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(101), msg.MessageID)

	assert.Equal(t, "@channel", f.formValue("sendMessage", "chat_id"))
	assert.Equal(t, "hello", f.formValue("sendMessage", "text"))
	assert.Equal(t, "HTML", f.formValue("sendMessage", "parse_mode"))
	assert.Equal(t, "true", f.formValue("sendMessage", "disable_web_page_preview"))
	assert.Empty(t, f.formValue("sendMessage", "reply_to_message_id"))
}

func TestSendMessageAsReply(t *testing.T) {
	f, c := newFakeBotAPI(t)

	_, err := c.SendMessage(context.Background(), "@channel", "hi", 42)
	require.NoError(t, err)
	assert.Equal(t, "42", f.formValue("sendMessage", "reply_to_message_id"))
}

func TestSendPhotoMultipart(t *testing.T) {
	f, c := newFakeBotAPI(t)

	data := []byte{0x89, 'P', 'N', 'G'}
	msg, err := c.SendPhoto(context.Background(), "@channel", "a caption", "cat.png", data, 0)
	require.NoError(t, err)
	assert.Positive(t, msg.MessageID)

	r := f.lastReq["sendPhoto"]
	require.NotNil(t, r)
	assert.Equal(t, "a caption", r.FormValue("caption"))
	require.NotNil(t, r.MultipartForm)
	files := r.MultipartForm.File["photo"]
	require.Len(t, files, 1)
	assert.Equal(t, "cat.png", files[0].Filename)
}

func TestSendAudioTitle(t *testing.T) {
	f, c := newFakeBotAPI(t)

	_, err := c.SendAudio(context.Background(), "@channel", "", "track.mp3", []byte("ID3"), "track.mp3", 0)
	require.NoError(t, err)
	assert.Equal(t, "track.mp3", f.formValue("sendAudio", "title"))
}

func TestEditMessageText(t *testing.T) {
	f, c := newFakeBotAPI(t)

	err := c.EditMessageText(context.Background(), "@channel", 55, "cu-55\n\nhello")
	require.NoError(t, err)
	assert.Equal(t, "55", f.formValue("editMessageText", "message_id"))
	assert.Equal(t, "cu-55\n\nhello", f.formValue("editMessageText", "text"))
}

func TestForwardAndDelete(t *testing.T) {
	f, c := newFakeBotAPI(t)

	msg, err := c.ForwardMessage(context.Background(), "scratch", "@channel", 7)
	require.NoError(t, err)
	assert.Equal(t, "cu-7\n\nforwarded caption", msg.Body())
	assert.Equal(t, "document", msg.AttachmentLabel())
	assert.Equal(t, "7", f.formValue("forwardMessage", "message_id"))
	assert.Equal(t, "@channel", f.formValue("forwardMessage", "from_chat_id"))

	require.NoError(t, c.DeleteMessage(context.Background(), "scratch", msg.MessageID))
	assert.Equal(t, fmt.Sprint(msg.MessageID), f.formValue("deleteMessage", "message_id"))
}

func TestErrorClassification(t *testing.T) {
	f, c := newFakeBotAPI(t)

	f.fail["sendMessage"] = "Bad Request: replied message not found"
	_, err := c.SendMessage(context.Background(), "@channel", "hi", 999)
	assert.ErrorIs(t, err, ErrReplyNotFound)

	f.fail["forwardMessage"] = "Bad Request: message to forward not found"
	_, err = c.ForwardMessage(context.Background(), "scratch", "@channel", 999)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	f.fail["editMessageText"] = "Too Many Requests: retry after 30"
	err = c.EditMessageText(context.Background(), "@channel", 1, "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
}
