package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		errMsg  string
	}{
		{name: "ws", address: "ws://example.com/chat", want: "ws://example.com/chat"},
		{name: "wss with port", address: "wss://example.com:8443/", want: "wss://example.com:8443/"},
		{name: "upper case scheme", address: "WSS://example.com/", want: "wss://example.com/"},
		{name: "bare host", address: "example.com", want: "ws://example.com"},
		{name: "bare host and port", address: "example.com:8080/chat", want: "ws://example.com:8080/chat"},
		{name: "http scheme", address: "http://example.com/", errMsg: "Invalid scheme 'http'"},
		{name: "ftp scheme", address: "ftp://example.com/", errMsg: "Invalid scheme 'ftp'"},
		{name: "empty", address: "", errMsg: neterr.MsgURLMalformed},
		{name: "garbage", address: "ws://[::1", errMsg: neterr.MsgURLMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseURI(tt.address)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, neterr.Message(err))
				assert.Equal(t, neterr.KindValidation, neterr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}
