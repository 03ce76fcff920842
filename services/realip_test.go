package services

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTrustedProxies(t *testing.T) {
	nets := ParseTrustedProxies(" 10.0.0.0/8, 192.0.2.7 ,bogus,::1,")
	assert.Len(t, nets, 3)
	assert.True(t, isTrusted(net.ParseIP("10.1.2.3"), nets))
	assert.False(t, isTrusted(net.ParseIP("192.0.2.8"), nets))
	assert.Empty(t, ParseTrustedProxies(""))
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "no trusted proxies ignores headers",
			remote:  "198.51.100.4:5000",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1", "X-Real-IP": "2.2.2.2"},
			want:    "198.51.100.4",
		},
		{
			name:    "untrusted peer ignores headers",
			trusted: "10.0.0.0/8",
			remote:  "198.51.100.4:5000",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1"},
			want:    "198.51.100.4",
		},
		{
			name:    "rightmost untrusted hop",
			trusted: "10.0.0.0/8",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "6.6.6.6, 1.1.1.1, 10.0.0.9"},
			want:    "1.1.1.1",
		},
		{
			name:    "all hops trusted",
			trusted: "10.0.0.0/8",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.8, 10.0.0.9"},
			want:    "10.0.0.8",
		},
		{
			name:    "x-real-ip from trusted peer",
			trusted: "10.0.0.2",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Real-IP": "1.1.1.1"},
			want:    "1.1.1.1",
		},
		{
			name:    "garbage header keeps peer",
			trusted: "10.0.0.0/8",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:    "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := TrustedRealIP(ParseTrustedProxies(tt.trusted))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = clientIP(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}
