package rules

import (
	"net/netip"
)

// Rules is an ordered rule list. The first matching rule decides.
type Rules struct {
	rules    []*Rule
	defaults Options
}

// New creates a rule list. Fields a matching rule leaves unset come from defaults.
func New(defaults Options, rules ...*Rule) *Rules {
	return &Rules{rules: rules, defaults: defaults}
}

// Compile parses every rule configuration in order.
func Compile(defaults Options, cfgs []RuleConfig) (*Rules, error) {
	list := make([]*Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		r, err := Parse(cfg)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return New(defaults, list...), nil
}

// Apply classifies a host resolved to addr. No match means deny.
func (rs *Rules) Apply(host string, addr netip.AddrPort) Options {
	for _, r := range rs.rules {
		if r.Matches(host, addr) {
			opts := r.partial.resolve(rs.defaults)
			if r.partial.Action == nil {
				opts.Action = ActionAllow
			}
			return opts
		}
	}

	denied := rs.defaults
	denied.Action = ActionDeny
	return denied
}

// Len returns the number of rules.
func (rs *Rules) Len() int {
	return len(rs.rules)
}

// Defaults returns the options inherited by partial rules.
func (rs *Rules) Defaults() Options {
	return rs.defaults
}

func ptr[T any](v T) *T { return &v }

// DefaultConfigs is the rule list used when none is configured: private
// addresses are denied, everything else is allowed under conservative limits.
func DefaultConfigs() []RuleConfig {
	return []RuleConfig{
		{Host: PrivateToken, Action: "deny"},
		{
			Host:             "*",
			Action:           "allow",
			MaxUpload:        ptr(int64(4 << 20)),
			MaxDownload:      ptr(int64(16 << 20)),
			WebsocketMessage: ptr(int64(128 << 10)),
			TimeoutMs:        ptr(int64(30000)),
		},
	}
}
