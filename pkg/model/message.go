package model

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part is one segment of a message body. The set of implementations is
// closed: TextPart and ImagePart.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// ImagePart holds an image reference. URL may be a data URI carrying an
// inline base64 payload, which is the only form the vendor mappers encode.
type ImagePart struct {
	URL string `json:"url"`
}

func (ImagePart) isPart() {}

// IsDataURI reports whether the image is an inline data URI.
func (p ImagePart) IsDataURI() bool {
	return strings.HasPrefix(p.URL, "data:")
}

// MIMEType extracts the media type from a data URI, e.g. "image/png" from
// "data:image/png;base64,...". Empty for non-data URIs.
func (p ImagePart) MIMEType() string {
	if !p.IsDataURI() {
		return ""
	}
	rest := strings.TrimPrefix(p.URL, "data:")
	mime, _, _ := strings.Cut(rest, ";")
	return mime
}

// Base64Data extracts the base64 payload following "base64," in a data URI.
func (p ImagePart) Base64Data() string {
	_, data, ok := strings.Cut(p.URL, "base64,")
	if !ok {
		return ""
	}
	return data
}

// Message is a single conversation turn. Parts keep their order.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a message with a single text part.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates all text parts in order.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}
