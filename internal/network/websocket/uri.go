package websocket

import (
	"net/url"
	"strings"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
)

// ParseURI parses a ws or wss address. An address without a scheme, such as
// "example.com:8080/chat", is treated as ws.
func ParseURI(address string) (*url.URL, error) {
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}
	u, err := url.Parse(address)
	if err != nil || u.Hostname() == "" {
		return nil, neterr.ErrURLMalformed
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "ws" && scheme != "wss" {
		return nil, neterr.Validationf("Invalid scheme '%s'", u.Scheme)
	}
	u.Scheme = scheme
	return u, nil
}
