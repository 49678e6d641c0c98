// Package attachment validates and classifies uploaded files.
//
// Classification never trusts the client-declared content type: the true
// MIME is sniffed from the byte signature and is authoritative for every
// policy decision. The declared value survives only as a display hint.
package attachment

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind selects the channel posting primitive that carries the attachment.
type Kind string

const (
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// Classification describes an accepted attachment.
type Classification struct {
	DeclaredMIME string
	SniffedMIME  string
	Size         int64
	Kind         Kind
}

// Rejection codes.
const (
	CodeEmpty            = "empty"
	CodeSizeExceeded     = "size-exceeded"
	CodeTypeForbidden    = "type-forbidden"
	CodeVideoUnsupported = "video-unsupported"
)

// Rejection explains why an attachment was refused.
type Rejection struct {
	Code   string
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// forbiddenPrefixes blocks executables and archives. Shell scripts sniff as
// plain text and are caught by the shebang check instead.
var forbiddenPrefixes = []string{
	"application/vnd.microsoft.portable-executable",
	"application/x-msdownload",
	"application/x-elf",
	"application/x-executable",
	"application/x-sharedlib",
	"application/x-mach-binary",
	"application/java-archive",
	"application/jar",
	"application/zip",
	"application/x-rar",
	"application/x-7z-compressed",
	"application/x-tar",
	"application/gzip",
}

// Classify validates data against the size limit and type policy and
// resolves the attachment kind. limit is in bytes; data exactly at the limit
// passes. Video is rejected outright: a product decision, not a technical
// limitation.
func Classify(data []byte, declaredMIME, name string, limit int64) (*Classification, error) {
	if len(data) == 0 {
		return nil, &Rejection{Code: CodeEmpty, Reason: "attachment is empty"}
	}
	if int64(len(data)) > limit {
		return nil, &Rejection{
			Code:   CodeSizeExceeded,
			Reason: fmt.Sprintf("attachment is too large (limit %d bytes)", limit),
		}
	}

	// mimetype has no detector for shell scripts (an interpreter line sniffs
	// as plain text), so any shebang is refused before the MIME policy runs.
	if bytes.HasPrefix(data, []byte("#!")) {
		return nil, &Rejection{Code: CodeTypeForbidden, Reason: "this file type is not allowed"}
	}

	sniffed := mimetype.Detect(data).String()
	// mimetype reports parameters for text types ("; charset=utf-8").
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = strings.TrimSpace(sniffed[:i])
	}

	for _, prefix := range forbiddenPrefixes {
		if strings.HasPrefix(sniffed, prefix) {
			return nil, &Rejection{Code: CodeTypeForbidden, Reason: "this file type is not allowed"}
		}
	}

	kind := kindOf(sniffed)
	if kind == KindVideo {
		return nil, &Rejection{Code: CodeVideoUnsupported, Reason: "video attachments are not supported"}
	}

	return &Classification{
		DeclaredMIME: declaredMIME,
		SniffedMIME:  sniffed,
		Size:         int64(len(data)),
		Kind:         kind,
	}, nil
}

func kindOf(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	default:
		return KindDocument
	}
}
