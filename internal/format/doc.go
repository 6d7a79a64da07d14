// Package format renders the bot's French-language screens as WhatsApp text.
// Everything here is a pure function of its arguments.
package format
