package rules

import (
	"fmt"
	"net/netip"
	"time"
)

// RuleConfig is the serialized form of a rule, as found in rule files.
type RuleConfig struct {
	Host             string `toml:"host" yaml:"host" json:"host"`
	Port             *int   `toml:"port,omitempty" yaml:"port,omitempty" json:"port,omitempty"`
	Action           string `toml:"action" yaml:"action" json:"action"`
	MaxUpload        *int64 `toml:"max_upload,omitempty" yaml:"max_upload,omitempty" json:"max_upload,omitempty"`
	MaxDownload      *int64 `toml:"max_download,omitempty" yaml:"max_download,omitempty" json:"max_download,omitempty"`
	WebsocketMessage *int64 `toml:"websocket_message,omitempty" yaml:"websocket_message,omitempty" json:"websocket_message,omitempty"`
	TimeoutMs        *int64 `toml:"timeout,omitempty" yaml:"timeout,omitempty" json:"timeout,omitempty"`
	UseProxy         *bool  `toml:"use_proxy,omitempty" yaml:"use_proxy,omitempty" json:"use_proxy,omitempty"`
}

// Rule is a compiled address rule.
type Rule struct {
	host    string
	pred    predicate
	port    *int
	partial PartialOptions
}

// Parse compiles a rule configuration.
func Parse(cfg RuleConfig) (*Rule, error) {
	pred, err := parsePredicate(cfg.Host)
	if err != nil {
		return nil, err
	}

	var partial PartialOptions
	if cfg.Action != "" {
		action, err := ParseAction(cfg.Action)
		if err != nil {
			return nil, fmt.Errorf("rule for %q: %w", cfg.Host, err)
		}
		partial.Action = &action
	}

	for name, v := range map[string]*int64{
		"max_upload":        cfg.MaxUpload,
		"max_download":      cfg.MaxDownload,
		"websocket_message": cfg.WebsocketMessage,
		"timeout":           cfg.TimeoutMs,
	} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("rule for %q: %s must not be negative", cfg.Host, name)
		}
	}
	if cfg.Port != nil && (*cfg.Port <= 0 || *cfg.Port > 65535) {
		return nil, fmt.Errorf("rule for %q: port %d out of range", cfg.Host, *cfg.Port)
	}

	partial.MaxUpload = cfg.MaxUpload
	partial.MaxDownload = cfg.MaxDownload
	partial.WebsocketMessage = cfg.WebsocketMessage
	partial.UseProxy = cfg.UseProxy
	if cfg.TimeoutMs != nil {
		d := time.Duration(*cfg.TimeoutMs) * time.Millisecond
		partial.Timeout = &d
	}

	return &Rule{host: cfg.Host, pred: pred, port: cfg.Port, partial: partial}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(cfg RuleConfig) *Rule {
	r, err := Parse(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Host returns the pattern the rule was compiled from.
func (r *Rule) Host() string {
	return r.host
}

// Matches reports whether the rule applies to a host resolved to addr.
func (r *Rule) Matches(host string, addr netip.AddrPort) bool {
	if r.port != nil && int(addr.Port()) != *r.port {
		return false
	}

	ip := addr.Addr()
	if r.pred.match(host, ip) {
		return true
	}
	if v4, ok := unwrap6to4(ip); ok {
		return r.pred.match("", v4)
	}
	return false
}
