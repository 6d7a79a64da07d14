// ABOUTME: Transport-neutral message envelope and outbound capability types
// ABOUTME: Shared by the session supervisor, the whatsmeow adapter, and the dialogue engine

package messaging

import (
	"context"
	"strings"
)

// StatusBroadcast is the pseudo-address WhatsApp uses for status updates.
const StatusBroadcast = "status@broadcast"

// Presence is a transient chat-state indicator.
type Presence string

const (
	PresenceComposing Presence = "composing"
	PresencePaused    Presence = "paused"
)

// Envelope is an inbound message as seen by the core.
type Envelope struct {
	ID   string
	Chat string // full sender address, used as the reply target
	Text string
	// Reply carries the selected id of a button/template/list reply.
	Reply     string
	FromMe    bool
	Protocol  bool
	Timestamp int64
}

// Body returns the text the dialogue engine routes on.
// Interactive replies take the selected id when no text is present.
func (e Envelope) Body() string {
	if t := strings.TrimSpace(e.Text); t != "" {
		return t
	}
	return strings.TrimSpace(e.Reply)
}

// HasContent reports whether the envelope carries text or an interactive reply.
func (e Envelope) HasContent() bool {
	return e.Body() != ""
}

// Outbound is the send capability bound to one live session.
type Outbound interface {
	SendText(ctx context.Context, to, text string) error
	SendContactCard(ctx context.Context, to, displayName, vcard string) error
	SendPresence(ctx context.Context, to string, state Presence) error
}

// Inbound is an accepted message tagged with its owning session.
type Inbound struct {
	SessionID string
	Envelope  Envelope
	Outbound  Outbound
}

// UserID strips the server and device decorations from a network address,
// e.g. "22951000000:12@s.whatsapp.net" becomes "22951000000".
func UserID(address string) string {
	id, _, _ := strings.Cut(address, "@")
	id, _, _ = strings.Cut(id, ":")
	return id
}
