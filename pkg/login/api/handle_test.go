package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shambasecure/shamba-auth/pkg/client"
	"github.com/shambasecure/shamba-auth/pkg/device"
	"github.com/shambasecure/shamba-auth/pkg/identity"
	"github.com/shambasecure/shamba-auth/pkg/login"
	"github.com/shambasecure/shamba-auth/pkg/notification"
	"github.com/shambasecure/shamba-auth/pkg/trusteddevice"
	"github.com/shambasecure/shamba-auth/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	laptopUA = "Mozilla/5.0 (X11; Linux x86_64) Chrome/120.0"
	laptopIP = "203.0.113.7"
	phoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Safari/604.1"
	phoneIP  = "198.51.100.9"
)

type apiFixture struct {
	router   chi.Router
	provider *identity.LocalProvider
	repo     *user.InMemRepository
	trusted  *trusteddevice.Service
	mock     *notification.MockNotifier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		provider: identity.NewLocalProvider("test-secret"),
		repo:     user.NewInMemRepository(),
		mock:     &notification.MockNotifier{},
	}
	f.trusted = trusteddevice.NewService(f.repo)

	nm, err := notification.NewNotificationManagerWithOptions("http://localhost:5173",
		notification.WithNotifier(notification.EmailSystem, f.mock),
		notification.WithDefaultTemplates(),
	)
	require.NoError(t, err)

	svc := login.NewLoginService(f.provider, f.repo, f.trusted, nm)
	handle := NewHandle(svc, f.trusted)

	f.router = chi.NewRouter()
	f.router.Use(client.AuthMiddleware(f.provider))
	f.router.Mount("/api/auth", handle.Routes())
	return f
}

func (f *apiFixture) registerUser(t *testing.T, email string) string {
	t.Helper()

	id, err := f.provider.CreateIdentity(context.Background(), email, "Amina Odhiambo")
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), user.User{
		UID:          id.UID,
		FullName:     "Amina Odhiambo",
		Email:        email,
		Role:         "farmer",
		IsRegistered: true,
	}))
	return id.UID
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func laptopHeaders() map[string]string {
	return map[string]string{"User-Agent": laptopUA, "X-Forwarded-For": laptopIP}
}

func phoneHeaders() map[string]string {
	return map[string]string{"User-Agent": phoneUA, "X-Forwarded-For": phoneIP}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (f *apiFixture) lastEmailToken(t *testing.T, field string) string {
	t.Helper()

	sent := f.mock.Sent()
	require.NotEmpty(t, sent)
	link := sent[len(sent)-1].Data[field]
	idx := strings.Index(link, "token=")
	require.NotEqual(t, -1, idx)
	return link[idx+len("token="):]
}

func TestSendMagicLinkEndpoint(t *testing.T) {
	t.Run("UnknownEmail", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/send-magic-link", SendMagicLinkRequest{Email: "nobody@example.com"}, laptopHeaders())

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("InvalidBody", func(t *testing.T) {
		f := newAPIFixture(t)
		r := httptest.NewRequest("POST", "/api/auth/send-magic-link", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingEmail", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/send-magic-link", SendMagicLinkRequest{}, laptopHeaders())
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NewDeviceRequiresVerification", func(t *testing.T) {
		f := newAPIFixture(t)
		f.registerUser(t, "amina@example.com")

		w := f.do(t, "POST", "/api/auth/send-magic-link", SendMagicLinkRequest{Email: "amina@example.com"}, laptopHeaders())
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, true, body["requiresDeviceVerification"])
	})

	t.Run("TrustedDeviceGetsLink", func(t *testing.T) {
		f := newAPIFixture(t)
		uid := f.registerUser(t, "amina@example.com")
		dev := device.Compute(laptopUA, laptopIP, time.Now())
		require.True(t, f.trusted.AddTrustedDevice(context.Background(), uid, dev))

		w := f.do(t, "POST", "/api/auth/send-magic-link", SendMagicLinkRequest{Email: "amina@example.com"}, laptopHeaders())
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])
		_, hasFlag := body["requiresDeviceVerification"]
		assert.False(t, hasFlag, "flag omitted when verification not required")
	})
}

func TestVerifyDeviceEndpoint(t *testing.T) {
	t.Run("MissingToken", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/verify-device", VerifyDeviceRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/verify-device", VerifyDeviceRequest{Token: "bogus"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Success", func(t *testing.T) {
		f := newAPIFixture(t)
		f.registerUser(t, "amina@example.com")

		w := f.do(t, "POST", "/api/auth/send-magic-link", SendMagicLinkRequest{Email: "amina@example.com"}, laptopHeaders())
		require.Equal(t, http.StatusOK, w.Code)
		token := f.lastEmailToken(t, "VerificationLink")

		w = f.do(t, "POST", "/api/auth/verify-device", VerifyDeviceRequest{Token: token}, phoneHeaders())
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "amina@example.com", body["email"])
	})
}

func TestVerifyTokenEndpoint(t *testing.T) {
	issueMagicLink := func(t *testing.T, f *apiFixture) string {
		t.Helper()
		uid := f.registerUser(t, "amina@example.com")
		dev := device.Compute(laptopUA, laptopIP, time.Now())
		require.True(t, f.trusted.AddTrustedDevice(context.Background(), uid, dev))
		w := f.do(t, "POST", "/api/auth/send-magic-link", SendMagicLinkRequest{Email: "amina@example.com"}, laptopHeaders())
		require.Equal(t, http.StatusOK, w.Code)
		return f.lastEmailToken(t, "MagicLink")
	}

	t.Run("Success", func(t *testing.T) {
		f := newAPIFixture(t)
		token := issueMagicLink(t, f)

		w := f.do(t, "POST", "/api/auth/verify-token", VerifyTokenRequest{Token: token}, laptopHeaders())
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["customToken"])
		userObj := body["user"].(map[string]interface{})
		assert.Equal(t, "amina@example.com", userObj["email"])
	})

	t.Run("WrongDevice", func(t *testing.T) {
		f := newAPIFixture(t)
		token := issueMagicLink(t, f)

		w := f.do(t, "POST", "/api/auth/verify-token", VerifyTokenRequest{Token: token}, phoneHeaders())
		assert.Equal(t, http.StatusForbidden, w.Code)

		// The mismatch consumed the token.
		w = f.do(t, "POST", "/api/auth/verify-token", VerifyTokenRequest{Token: token}, laptopHeaders())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MissingToken", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/verify-token", VerifyTokenRequest{}, laptopHeaders())
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTrustedDevicesEndpoint(t *testing.T) {
	t.Run("RequiresAuth", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "GET", "/api/auth/trusted-devices?uid=abc", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ListsOwnDevices", func(t *testing.T) {
		f := newAPIFixture(t)
		uid := f.registerUser(t, "amina@example.com")
		dev := device.Compute(laptopUA, laptopIP, time.Now())
		require.True(t, f.trusted.AddTrustedDevice(context.Background(), uid, dev))

		session, err := f.provider.CreateSessionToken(context.Background(), uid)
		require.NoError(t, err)

		w := f.do(t, "GET", "/api/auth/trusted-devices?uid="+uid, nil, map[string]string{
			"Authorization": "Bearer " + session,
		})
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		devices := body["devices"].([]interface{})
		assert.Len(t, devices, 1)
	})

	t.Run("CannotListOthers", func(t *testing.T) {
		f := newAPIFixture(t)
		uid := f.registerUser(t, "amina@example.com")

		session, err := f.provider.CreateSessionToken(context.Background(), uid)
		require.NoError(t, err)

		w := f.do(t, "GET", "/api/auth/trusted-devices?uid=someone-else", nil, map[string]string{
			"Authorization": "Bearer " + session,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRemoveDeviceEndpoint(t *testing.T) {
	t.Run("MissingFields", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/remove-device", RemoveDeviceRequest{UID: "abc"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/remove-device", RemoveDeviceRequest{UID: "ghost", Fingerprint: "abc"}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Removes", func(t *testing.T) {
		f := newAPIFixture(t)
		uid := f.registerUser(t, "amina@example.com")
		dev := device.Compute(laptopUA, laptopIP, time.Now())
		require.True(t, f.trusted.AddTrustedDevice(context.Background(), uid, dev))

		w := f.do(t, "POST", "/api/auth/remove-device", RemoveDeviceRequest{UID: uid, Fingerprint: dev.Fingerprint}, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		devices, err := f.trusted.ListTrustedDevices(context.Background(), uid)
		require.NoError(t, err)
		assert.Empty(t, devices)
	})

	// Clients send the fingerprint under the deviceFingerprint key; pin the
	// wire name with a raw payload so a tag change cannot slip through.
	t.Run("AcceptsDeviceFingerprintKey", func(t *testing.T) {
		f := newAPIFixture(t)
		uid := f.registerUser(t, "amina@example.com")
		dev := device.Compute(laptopUA, laptopIP, time.Now())
		require.True(t, f.trusted.AddTrustedDevice(context.Background(), uid, dev))

		payload := `{"uid":"` + uid + `","deviceFingerprint":"` + dev.Fingerprint + `"}`
		r := httptest.NewRequest("POST", "/api/auth/remove-device", strings.NewReader(payload))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)

		devices, err := f.trusted.ListTrustedDevices(context.Background(), uid)
		require.NoError(t, err)
		assert.Empty(t, devices)
	})
}

func TestCheckEmailEndpoint(t *testing.T) {
	t.Run("Registered", func(t *testing.T) {
		f := newAPIFixture(t)
		f.registerUser(t, "amina@example.com")

		w := f.do(t, "POST", "/api/auth/check-email", CheckEmailRequest{Email: "amina@example.com"}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["exists"])
		assert.Equal(t, true, body["isRegistered"])
	})

	t.Run("Unknown", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/check-email", CheckEmailRequest{Email: "nobody@example.com"}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["exists"])
	})

	t.Run("Invalid", func(t *testing.T) {
		f := newAPIFixture(t)
		w := f.do(t, "POST", "/api/auth/check-email", CheckEmailRequest{Email: "nope"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
