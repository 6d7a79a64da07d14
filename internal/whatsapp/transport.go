// ABOUTME: whatsmeow-backed session transport: connect, pairing codes, sends, and event mapping
// ABOUTME: Translates whatsmeow connection events into session events

package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/2389/afrik-gateway/internal/messaging"
	"github.com/2389/afrik-gateway/internal/session"
)

// Transport is one whatsmeow connection. It implements session.Transport.
type Transport struct {
	client *whatsmeow.Client
	db     *sql.DB
	emit   func(session.Event)
	logger *slog.Logger

	// ctx lives until Disconnect and bounds the pairing code stream.
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newTransport(client *whatsmeow.Client, db *sql.DB, emit func(session.Event), logger *slog.Logger) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		client: client,
		db:     db,
		emit:   emit,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect opens the websocket. An unpaired device streams pairing codes
// until it is linked or the code stream times out.
func (t *Transport) Connect(ctx context.Context) error {
	if t.client.Store.ID == nil {
		qr, err := t.client.GetQRChannel(t.ctx)
		if err != nil {
			return fmt.Errorf("requesting pairing codes: %w", err)
		}
		go t.watchPairing(qr)
	}
	if err := t.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

func (t *Transport) watchPairing(qr <-chan whatsmeow.QRChannelItem) {
	for item := range qr {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			t.emit(session.Event{Kind: session.EventPairing, PairingCode: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
			t.logger.Info("device paired")
		case whatsmeow.QRChannelTimeout.Event:
			t.logger.Info("pairing code stream timed out")
			t.emit(session.Event{Kind: session.EventClosed, Err: fmt.Errorf("pairing timed out")})
		case whatsmeow.QRChannelEventError:
			t.emit(session.Event{Kind: session.EventClosed, Err: item.Error})
		default:
			t.logger.Warn("pairing failed", "event", item.Event)
			t.emit(session.Event{Kind: session.EventClosed, Err: fmt.Errorf("pairing failed: %s", item.Event)})
		}
	}
}

// Disconnect closes the websocket and the device store. It is idempotent.
func (t *Transport) Disconnect() {
	t.once.Do(func() {
		t.cancel()
		t.client.Disconnect()
		if err := t.db.Close(); err != nil {
			t.logger.Warn("closing device store", "error", err)
		}
	})
}

// Logout unlinks the device. Unpaired devices have nothing to unlink.
func (t *Transport) Logout(ctx context.Context) error {
	if t.client.Store.ID == nil {
		return nil
	}
	return t.client.Logout(ctx)
}

func (t *Transport) handle(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		if err := t.client.SendPresence(t.ctx, types.PresenceAvailable); err != nil {
			t.logger.Debug("sending availability failed", "error", err)
		}
		t.emit(session.Event{Kind: session.EventOpen})
	case *events.Message:
		t.emit(session.Event{Kind: session.EventMessage, Message: envelopeFrom(v)})
	case *events.LoggedOut:
		t.closed(true, fmt.Errorf("logged out: %s", v.Reason.String()))
	case *events.ConnectFailure:
		t.closed(v.Reason.IsLoggedOut(), fmt.Errorf("connect failure: %s", v.Reason.String()))
	case *events.StreamReplaced:
		t.closed(false, fmt.Errorf("stream replaced"))
	case *events.Disconnected:
		t.closed(false, fmt.Errorf("connection lost"))
	}
}

// closed reports off the whatsmeow dispatch goroutine, since the supervisor
// disconnects this transport in response.
func (t *Transport) closed(loggedOut bool, err error) {
	go t.emit(session.Event{Kind: session.EventClosed, LoggedOut: loggedOut, Err: err})
}

func (t *Transport) SendText(ctx context.Context, to, text string) error {
	jid, err := types.ParseJID(to)
	if err != nil {
		return fmt.Errorf("parsing recipient: %w", err)
	}
	_, err = t.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	return err
}

func (t *Transport) SendContactCard(ctx context.Context, to, displayName, vcard string) error {
	jid, err := types.ParseJID(to)
	if err != nil {
		return fmt.Errorf("parsing recipient: %w", err)
	}
	_, err = t.client.SendMessage(ctx, jid, &waE2E.Message{
		ContactMessage: &waE2E.ContactMessage{
			DisplayName: proto.String(displayName),
			Vcard:       proto.String(vcard),
		},
	})
	return err
}

func (t *Transport) SendPresence(ctx context.Context, to string, state messaging.Presence) error {
	jid, err := types.ParseJID(to)
	if err != nil {
		return fmt.Errorf("parsing recipient: %w", err)
	}
	presence := types.ChatPresencePaused
	if state == messaging.PresenceComposing {
		presence = types.ChatPresenceComposing
	}
	return t.client.SendChatPresence(ctx, jid, presence, types.ChatPresenceMediaText)
}

var (
	_ session.Dialer    = (*Dialer)(nil)
	_ session.Transport = (*Transport)(nil)
)
