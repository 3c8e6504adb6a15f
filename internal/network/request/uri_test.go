package request

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
)

func TestCheckURI(t *testing.T) {
	tests := []struct {
		address string
		wantErr string
	}{
		{"http://example.com/", ""},
		{"HTTPS://example.com:8443/path?q=1", ""},
		{"example.com", neterr.MsgMissingScheme},
		{"/relative/path", neterr.MsgMissingScheme},
		{"http:///nohost", neterr.MsgURLMalformed},
		{"ftp://example.com/", "Invalid protocol 'ftp'"},
		{"http://exa mple.com/", neterr.MsgURLMalformed},
		{"http://example.com:99999/", neterr.MsgURLMalformed},
		{"://missing", neterr.MsgURLMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			u, err := CheckURI(tt.address)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Contains(t, []string{"http", "https"}, u.Scheme)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, neterr.Message(err))
			assert.Equal(t, neterr.KindValidation, neterr.KindOf(err))
		})
	}
}

func TestPort(t *testing.T) {
	for raw, want := range map[string]int{
		"http://a/":      80,
		"https://a/":     443,
		"http://a:8080/": 8080,
		"wss://a/":       443,
		"ws://a/":        80,
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, Port(u), raw)
	}
}
