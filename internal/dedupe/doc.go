// Package dedupe drops inbound messages the transport delivers more than once.
//
// The WhatsApp multi-device protocol may replay recent messages after a
// reconnect. The session supervisor asks the Filter about every accepted
// message and forwards only first sightings to the dialogue engine.
package dedupe
