package intake

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/railesDev/chaoticShittyRapMusic/attachment"
	"github.com/railesDev/chaoticShittyRapMusic/captcha"
	"github.com/railesDev/chaoticShittyRapMusic/moderation"
	"github.com/railesDev/chaoticShittyRapMusic/telegram"
	"github.com/railesDev/chaoticShittyRapMusic/token"
)

// Channel is the broadcast destination for accepted submissions. The
// telegram client implements it; tests substitute a fake.
type Channel interface {
	SendMessage(ctx context.Context, chatID, text string, replyTo int64) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID, caption, name string, data []byte, replyTo int64) (*telegram.Message, error)
	SendAudio(ctx context.Context, chatID, caption, name string, data []byte, title string, replyTo int64) (*telegram.Message, error)
	SendDocument(ctx context.Context, chatID, caption, name string, data []byte, replyTo int64) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID string, messageID int64, text string) error
	EditMessageCaption(ctx context.Context, chatID string, messageID int64, caption string) error
	ForwardMessage(ctx context.Context, toChatID, fromChatID string, messageID int64) (*telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID string, messageID int64) error
}

// Config wires a Service. Every dependency is explicit so the service is a
// pure function of its configuration.
type Config struct {
	Channel        Channel
	ChannelID      string
	Resolver       *Resolver
	Signer         *token.Signer
	Captcha        *captcha.Verifier
	Filter         *moderation.Filter
	MaxUploadBytes int64
}

// Service runs one submission through the full gate sequence and relays
// accepted ones into the channel.
type Service struct {
	channel   Channel
	channelID string
	resolver  *Resolver
	signer    *token.Signer
	captcha   *captcha.Verifier
	filter    *moderation.Filter
	maxUpload int64
	now       func() time.Time
}

// NewService builds a Service from its explicit dependencies.
func NewService(cfg Config) *Service {
	return &Service{
		channel:   cfg.Channel,
		channelID: cfg.ChannelID,
		resolver:  cfg.Resolver,
		signer:    cfg.Signer,
		captcha:   cfg.Captcha,
		filter:    cfg.Filter,
		maxUpload: cfg.MaxUploadBytes,
		now:       time.Now,
	}
}

// Accepted is the outcome of a relayed submission.
type Accepted struct {
	MessageID int64
	PublicID  string // "cu-<MessageID>"
	NewToken  string // fresh rate-limit token for the client
}

// Process gates one submission and, if it passes, performs the two-phase
// identifier protocol:
//
//  1. Post the content without any identifier prefix. The channel assigns
//     its own unique, strictly-increasing message id as a side effect; that
//     id is the single source of truth, no counter is kept anywhere.
//  2. Edit the just-posted message, prefixing "cu-<id>".
//
// A failure in step 1 aborts with nothing posted. A failure in step 2
// leaves the message live without its public id: an accepted at-least-once
// inconsistency that is logged, not retried within the request.
func (s *Service) Process(ctx context.Context, sub *Submission) (*Accepted, error) {
	if sub.Honeypot != "" {
		return nil, reject(KindValidation, "invalid form")
	}
	if sub.Text == "" && sub.File == nil {
		return nil, reject(KindValidation, "nothing to submit")
	}

	if ok, reason := s.captcha.Verify(ctx, sub.CaptchaToken); !ok {
		return nil, reject(KindCaptchaFailed, reason)
	}

	now := s.now()
	if sub.RateToken != "" {
		// A tampered or malformed cookie is treated as no cookie at all;
		// only a well-signed recent token blocks the submission.
		if v := s.signer.Verify(sub.RateToken, now); v.Kind == token.RateLimited {
			return nil, reject(KindRateLimited, "please wait before submitting again")
		}
	}

	if v := s.filter.Evaluate(sub.Text); v != nil {
		return nil, reject(KindModerationRejected, v.Reason)
	}

	var class *attachment.Classification
	if sub.File != nil {
		c, err := attachment.Classify(sub.File.Data, sub.File.DeclaredMIME, sub.File.Name, s.maxUpload)
		if err != nil {
			var rej *attachment.Rejection
			if errors.As(err, &rej) {
				return nil, reject(KindAttachmentRejected, rej.Reason)
			}
			return nil, reject(KindAttachmentRejected, err.Error())
		}
		class = c
	}

	var replyTo int64
	if sub.ReplyRef != "" {
		preview, err := s.resolver.Resolve(ctx, sub.ReplyRef)
		if err != nil {
			if errors.Is(err, ErrReplyNotFound) {
				return nil, reject(KindReplyNotFound, "reply target not found")
			}
			return nil, reject(KindUpstreamError, err.Error())
		}
		if preview != nil {
			replyTo = preview.ID
		}
	}

	body := sanitize(sub.Text)
	posted, err := s.post(ctx, body, class, sub, replyTo)
	if err != nil {
		// The reply target can vanish between resolution and posting.
		if errors.Is(err, telegram.ErrReplyNotFound) {
			return nil, reject(KindReplyNotFound, "reply target no longer exists")
		}
		return nil, reject(KindUpstreamError, err.Error())
	}

	publicID := fmt.Sprintf("cu-%d", posted.MessageID)
	if err := s.assign(ctx, posted.MessageID, publicID, body, class != nil); err != nil {
		// Message is live without its public id. Accepted at-least-once
		// boundary: detectable, logged, never auto-retried.
		log.Printf("intake: message %d posted but id assignment failed: %v", posted.MessageID, err)
	}

	return &Accepted{
		MessageID: posted.MessageID,
		PublicID:  publicID,
		NewToken:  s.signer.Issue(now),
	}, nil
}

func (s *Service) post(ctx context.Context, body string, class *attachment.Classification, sub *Submission, replyTo int64) (*telegram.Message, error) {
	if class == nil {
		return s.channel.SendMessage(ctx, s.channelID, body, replyTo)
	}
	name := sub.File.Name
	if name == "" {
		name = "file"
	}
	switch class.Kind {
	case attachment.KindImage:
		return s.channel.SendPhoto(ctx, s.channelID, body, name, sub.File.Data, replyTo)
	case attachment.KindAudio:
		return s.channel.SendAudio(ctx, s.channelID, body, name, sub.File.Data, name, replyTo)
	default:
		return s.channel.SendDocument(ctx, s.channelID, body, name, sub.File.Data, replyTo)
	}
}

func (s *Service) assign(ctx context.Context, messageID int64, publicID, body string, hasAttachment bool) error {
	prefixed := publicID
	if body != "" {
		prefixed = publicID + "\n\n" + body
	}
	if hasAttachment {
		return s.channel.EditMessageCaption(ctx, s.channelID, messageID, prefixed)
	}
	return s.channel.EditMessageText(ctx, s.channelID, messageID, prefixed)
}

// sanitize escapes text for the channel's HTML parse mode.
func sanitize(text string) string {
	return html.EscapeString(text)
}
