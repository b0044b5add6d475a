// Package device derives stable fingerprints for client devices from request
// metadata.
//
// A fingerprint is the SHA-256 hash of the user agent string joined with the
// client IP address, so two requests from the same browser on the same
// network address always map to the same device. The parsed user agent is
// carried alongside the hash for display in verification emails and the
// trusted-device list.
package device
