package intake

// Kind classifies terminal outcomes of a submission. None of these are
// retried server-side; the submitter re-drives the whole flow.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindCaptchaFailed      Kind = "captcha-failed"
	KindRateLimited        Kind = "rate-limited"
	KindAttachmentRejected Kind = "attachment-rejected"
	KindModerationRejected Kind = "moderation-rejected"
	KindReplyNotFound      Kind = "reply-not-found"
	KindUpstreamError      Kind = "upstream-error"
)

// Rejection is a terminal, non-retried outcome for one submission. Reason is
// short and human-readable; Kind drives the HTTP mapping.
type Rejection struct {
	Kind   Kind
	Reason string
}

func (r *Rejection) Error() string { return string(r.Kind) + ": " + r.Reason }

func reject(kind Kind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}
