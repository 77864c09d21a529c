package gmail

import (
	"encoding/base64"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// extractPlainText walks a MIME part tree and returns the first text/plain
// body, decoded. Direct text/plain children are tried before deeper parts.
func extractPlainText(part *gmailv1.MessagePart) string {
	if part == nil || isAttachment(part) {
		return ""
	}
	if mimeType(part) == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if mimeType(sub) == "text/plain" {
			if body := extractPlainText(sub); body != "" {
				return body
			}
		}
	}
	for _, sub := range part.Parts {
		if body := extractPlainText(sub); body != "" {
			return body
		}
	}
	return ""
}

// extractHTML returns the first text/html body in the tree, decoded.
func extractHTML(part *gmailv1.MessagePart) string {
	if part == nil || isAttachment(part) {
		return ""
	}
	if mimeType(part) == "text/html" && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if body := extractHTML(sub); body != "" {
			return body
		}
	}
	return ""
}

func mimeType(part *gmailv1.MessagePart) string {
	mt := strings.ToLower(strings.TrimSpace(part.MimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// isAttachment reports whether a part is a named file rather than a body.
func isAttachment(part *gmailv1.MessagePart) bool {
	return part.Filename != "" || (part.Body != nil && part.Body.AttachmentId != "")
}

func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
