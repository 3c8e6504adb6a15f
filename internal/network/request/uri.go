package request

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/netsandbox/internal/network/neterr"
)

// CheckURI parses an http or https address.
func CheckURI(address string) (*url.URL, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, neterr.ErrURLMalformed
	}
	if u.Scheme == "" {
		return nil, neterr.ErrMissingScheme
	}
	if u.Hostname() == "" {
		return nil, neterr.ErrURLMalformed
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, neterr.Validationf("Invalid protocol '%s'", u.Scheme)
	}
	u.Scheme = scheme

	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n <= 0 || n > 65535 {
			return nil, neterr.ErrURLMalformed
		}
	}
	return u, nil
}

// Port returns the explicit port of u or the scheme default.
func Port(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, _ := strconv.Atoi(p)
		return n
	}
	switch u.Scheme {
	case "https", "wss":
		return 443
	default:
		return 80
	}
}
