// ABOUTME: Converts whatsmeow message events into transport-neutral envelopes
// ABOUTME: Resolves LID chats to phone-number addresses when the network provides one

package whatsapp

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/2389/afrik-gateway/internal/messaging"
)

func envelopeFrom(evt *events.Message) messaging.Envelope {
	msg := evt.Message
	return messaging.Envelope{
		ID:        string(evt.Info.ID),
		Chat:      replyAddress(evt.Info.MessageSource),
		Text:      messageText(msg),
		Reply:     replyID(msg),
		FromMe:    evt.Info.IsFromMe,
		Protocol:  msg.GetProtocolMessage() != nil,
		Timestamp: evt.Info.Timestamp.Unix(),
	}
}

// replyAddress is the chat address, translated from a hidden-user (LID) chat
// to the sender's phone-number address when known. Backend accounts are keyed
// by phone number.
func replyAddress(src types.MessageSource) string {
	chat := src.Chat
	if chat.Server == types.HiddenUserServer && !src.IsGroup && !src.SenderAlt.IsEmpty() {
		chat = src.SenderAlt.ToNonAD()
	}
	return chat.String()
}

func messageText(msg *waE2E.Message) string {
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.GetExtendedTextMessage().GetText() != "":
		return msg.GetExtendedTextMessage().GetText()
	default:
		return msg.GetImageMessage().GetCaption()
	}
}

func replyID(msg *waE2E.Message) string {
	switch {
	case msg.GetButtonsResponseMessage() != nil:
		return msg.GetButtonsResponseMessage().GetSelectedButtonID()
	case msg.GetTemplateButtonReplyMessage() != nil:
		return msg.GetTemplateButtonReplyMessage().GetSelectedID()
	case msg.GetListResponseMessage() != nil:
		return msg.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID()
	}
	return ""
}
