// Package whatsapp implements the session Dialer and Transport on top of
// whatsmeow, the multi-device WhatsApp Web client.
//
// Each session keeps its device credentials in its own SQLite file under the
// configured directory, so a session can be purged by deleting one file.
// whatsmeow's automatic reconnect is disabled: the session supervisor decides
// when and how often to reconnect.
package whatsapp
