// Package models defines the domain types and wire payloads shared by the
// coordination core and the transport layer.
package models

import "time"

// MessageKind distinguishes plain text messages from file references.
type MessageKind string

const (
	// KindText is a sanitized plain-text message.
	KindText MessageKind = "text"
	// KindFile is an opaque reference produced by the upload collaborator.
	KindFile MessageKind = "file"
)

// FileRef points at an uploaded file. The chat core never inspects the bytes
// behind it; the pair is produced by the upload endpoint and passed through.
type FileRef struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

// Message is a single chat entry in a room's history. Immutable once appended.
type Message struct {
	Nickname string      `json:"nickname"`
	Kind     MessageKind `json:"type"`
	Text     string      `json:"message,omitempty"`
	File     *FileRef    `json:"file,omitempty"`
	Time     time.Time   `json:"time"`
}

// RoomSummary is the public view of a room. The password hash never leaves
// the registry; only the hasPassword flag is exposed.
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HasPassword bool   `json:"hasPassword"`
	Owner       string `json:"owner"`
}
