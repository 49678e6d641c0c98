package intake

import (
	"context"
	"errors"
	"html"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/railesDev/chaoticShittyRapMusic/telegram"
)

// ErrReplyNotFound reports that a reply reference named an identifier that
// does not exist in the channel. Distinguishable from generic upstream
// failures so the submitter can fix the reference.
var ErrReplyNotFound = errors.New("intake: reply target not found")

// replyRefPattern matches a public identifier reference: "cu", an optional
// separator, then digits.
var replyRefPattern = regexp.MustCompile(`(?i)\bcu[-_ ]?(\d+)`)

// idPrefixPattern strips our own prefix from previewed message bodies.
var idPrefixPattern = regexp.MustCompile(`^cu-\d+\s*`)

const previewLimit = 200

// Preview is a redacted view of a prior channel message, safe to embed in
// reply-composition UI.
type Preview struct {
	ID   int64
	Text string
	Kind string // attachment label, empty for text-only messages
}

// ParseRef extracts a candidate message identifier from free text. ok=false
// means the text does not reference a prior submission at all, which is not
// an error.
func ParseRef(text string) (int64, bool) {
	m := replyRefPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Resolver fetches redacted previews of prior channel messages.
type Resolver struct {
	channel     Channel
	channelID   string
	scratchChat string
}

// NewResolver builds a resolver reading from channelID via the private
// scratch chat.
func NewResolver(channel Channel, channelID, scratchChat string) *Resolver {
	return &Resolver{channel: channel, channelID: channelID, scratchChat: scratchChat}
}

// Resolve returns a preview of the message referenced by ref, nil when ref
// does not name one, or ErrReplyNotFound when the identifier does not exist.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Preview, error) {
	id, ok := ParseRef(ref)
	if !ok {
		return nil, nil
	}
	return r.ResolveID(ctx, id)
}

// ResolveID fetches the preview for a known identifier. The channel API has
// no direct read for arbitrary messages, so the message is forwarded to the
// scratch chat, read from the forwarded copy, and the copy deleted again so
// no duplicate artifact is left behind.
func (r *Resolver) ResolveID(ctx context.Context, id int64) (*Preview, error) {
	fwd, err := r.channel.ForwardMessage(ctx, r.scratchChat, r.channelID, id)
	if err != nil {
		if errors.Is(err, telegram.ErrMessageNotFound) {
			return nil, ErrReplyNotFound
		}
		return nil, err
	}
	if delErr := r.channel.DeleteMessage(ctx, r.scratchChat, fwd.MessageID); delErr != nil {
		log.Printf("intake: could not delete forwarded preview copy %d: %v", fwd.MessageID, delErr)
	}
	return &Preview{ID: id, Text: previewText(fwd.Body()), Kind: fwd.AttachmentLabel()}, nil
}

func previewText(body string) string {
	body = idPrefixPattern.ReplaceAllString(strings.TrimSpace(body), "")
	body = strings.TrimSpace(body)
	if runes := []rune(body); len(runes) > previewLimit {
		body = string(runes[:previewLimit])
	}
	return html.EscapeString(body)
}
