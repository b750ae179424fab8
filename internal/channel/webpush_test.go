package channel

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dietkit/notify/internal/domain/notification"
	"github.com/dietkit/notify/internal/domain/subscription"
)

// subscriberKeys builds a browser-side key pair the way a real push
// subscription would: uncompressed P-256 public key plus 16-byte auth
// secret, both base64url encoded.
func subscriberKeys(t *testing.T) subscription.Keys {
	t.Helper()

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return subscription.Keys{
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestWebPush(t *testing.T) *WebPush {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	return NewWebPush(WebPushConfig{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subject:         "mailto:ops@dietkit.example",
	}, zap.NewNop())
}

func TestWebPushStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		code int
		want notification.DeliveryStatus
	}{
		{"created", http.StatusCreated, notification.StatusSent},
		{"gone", http.StatusGone, notification.StatusDead},
		{"not found", http.StatusNotFound, notification.StatusDead},
		{"server error", http.StatusInternalServerError, notification.StatusTransientFailure},
		{"too many requests", http.StatusTooManyRequests, notification.StatusTransientFailure},
	}

	w := newTestWebPush(t)
	keys := subscriberKeys(t)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotBody []byte
			srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
				gotBody, _ = io.ReadAll(r.Body)
				rw.WriteHeader(tc.code)
			}))
			defer srv.Close()

			res := w.Send(context.Background(), &subscription.Subscription{
				RecipientID: 3,
				Channel:     subscription.ChannelWebPush,
				Endpoint:    srv.URL,
				Keys:        keys,
			}, testPayload())

			assert.Equal(t, tc.want, res.Status)
			assert.NotEmpty(t, gotBody, "payload must reach the provider encrypted")
			assert.NotContains(t, string(gotBody), "Meal reminder", "payload must not travel in cleartext")
		})
	}
}

func TestWebPushUnreachableProviderIsTransient(t *testing.T) {
	w := newTestWebPush(t)

	res := w.Send(context.Background(), &subscription.Subscription{
		RecipientID: 3,
		Channel:     subscription.ChannelWebPush,
		Endpoint:    "http://127.0.0.1:1", // nothing listens here
		Keys:        subscriberKeys(t),
	}, testPayload())

	assert.Equal(t, notification.StatusTransientFailure, res.Status)
}
