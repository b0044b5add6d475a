package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"
)

// Info describes a client device as derived from a single request.
// It is recomputed on every request and never stored on its own; trusted
// device entries and verification tokens embed a copy.
type Info struct {
	Fingerprint string    `json:"fingerprint"`
	DeviceType  string    `json:"device_type"`
	OS          string    `json:"os"`
	Browser     string    `json:"browser"`
	IPAddress   string    `json:"ip_address"`
	IsMobile    bool      `json:"is_mobile"`
	IsTablet    bool      `json:"is_tablet"`
	IsDesktop   bool      `json:"is_desktop"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Compute derives a device fingerprint from a user agent string and a client
// IP address. The fingerprint is the hex SHA-256 digest of "userAgent|ip",
// so the same pair always yields the same hash. Empty inputs are allowed and
// produce a valid, if generic, fingerprint.
func Compute(userAgent, ipAddress string, now time.Time) Info {
	combined := fmt.Sprintf("%s|%s", userAgent, ipAddress)
	hash := sha256.Sum256([]byte(combined))

	ua := useragent.Parse(userAgent)

	return Info{
		Fingerprint: hex.EncodeToString(hash[:]),
		DeviceType:  deviceType(ua),
		OS:          strings.TrimSpace(ua.OS + " " + ua.OSVersion),
		Browser:     strings.TrimSpace(ua.Name + " " + ua.Version),
		IPAddress:   ipAddress,
		IsMobile:    ua.Mobile,
		IsTablet:    ua.Tablet,
		IsDesktop:   ua.Desktop,
		ObservedAt:  now.UTC(),
	}
}

// FromRequest extracts fingerprint inputs from an HTTP request and computes
// the device info in one step. The client address prefers the first hop of
// X-Forwarded-For and falls back to the socket address.
func FromRequest(r *http.Request, now time.Time) Info {
	return Compute(r.UserAgent(), ClientIP(r), now)
}

// ClientIP returns the originating client address for a request.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// The header can carry a proxy chain; the first entry is the client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func deviceType(ua useragent.UserAgent) string {
	if ua.Device != "" {
		return ua.Device
	}
	switch {
	case ua.Tablet:
		return "Tablet"
	case ua.Mobile:
		return "Mobile"
	case ua.Desktop:
		return "Desktop"
	default:
		return "Other"
	}
}
