// Package notification delivers account emails through pluggable notifiers.
//
// A NotificationManager pairs notice types (magic link, device verification,
// welcome, new device alert) with per-channel templates and routes each Send
// call to the notifier registered for that channel. Production wires an SMTP
// notifier; tests register a MockNotifier and inspect what was sent.
//
// Templates are Go html/template sources embedded from templates/ and
// rendered against the string map in NotificationData.
package notification
