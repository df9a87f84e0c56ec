package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignFormat(t *testing.T) {
	sig := Sign([]byte(`{"a":1}`), "s3cr3t")

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)
	assert.Equal(t, sig, Sign([]byte(`{"a":1}`), "s3cr3t"))
}

func TestSignKnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	sig := Sign([]byte("what do ya want for nothing?"), "Jefe")
	assert.Equal(t, "sha256=5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", sig)
}

func TestVerifyRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte(`{"event_type":"order.created"}`),
		[]byte("\x00\x01\x02 binary"),
	}
	secrets := []string{"", "s3cr3t", "a much longer secret with spaces"}

	for _, p := range payloads {
		for _, s := range secrets {
			assert.True(t, Verify(p, Sign(p, s), s), "payload=%q secret=%q", p, s)
		}
	}
}

func TestVerifyWithoutPrefix(t *testing.T) {
	payload := []byte("hello")
	sig := strings.TrimPrefix(Sign(payload, "k"), Prefix)

	assert.True(t, Verify(payload, sig, "k"))
}

func TestVerifyRejects(t *testing.T) {
	payload := []byte(`{"order_id":"o1"}`)
	sig := Sign(payload, "s3cr3t")

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
	}{
		{"tampered payload", []byte(`{"order_id":"o2"}`), sig, "s3cr3t"},
		{"wrong secret", payload, sig, "other"},
		{"empty signature", payload, "", "s3cr3t"},
		{"prefix only", payload, "sha256=", "s3cr3t"},
		{"malformed hex", payload, "sha256=zzzz", "s3cr3t"},
		{"truncated", payload, sig[:len(sig)-2], "s3cr3t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Verify(tt.payload, tt.signature, tt.secret))
		})
	}
}
