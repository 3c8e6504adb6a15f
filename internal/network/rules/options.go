package rules

import (
	"fmt"
	"strings"
	"time"
)

// Action is the verdict a rule assigns to an address.
type Action int

const (
	// ActionDeny rejects the address before any socket is opened.
	ActionDeny Action = iota
	// ActionAllow permits the address.
	ActionAllow
	// ActionLimit permits the address under the limits the rule sets.
	ActionLimit
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionLimit:
		return "limit"
	default:
		return "deny"
	}
}

// ParseAction parses an action name case-insensitively.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return ActionAllow, nil
	case "deny":
		return ActionDeny, nil
	case "limit":
		return ActionLimit, nil
	default:
		return ActionDeny, fmt.Errorf("unknown action %q", s)
	}
}

// Options are the effective limits for one connection. Zero limits are unlimited.
type Options struct {
	Action           Action
	MaxUpload        int64
	MaxDownload      int64
	WebsocketMessage int64
	Timeout          time.Duration
	UseProxy         bool
}

// Allowed reports whether the action lets the connection proceed.
func (o Options) Allowed() bool {
	return o.Action != ActionDeny
}

// PartialOptions holds the fields a single rule sets. Nil fields are inherited.
type PartialOptions struct {
	Action           *Action
	MaxUpload        *int64
	MaxDownload      *int64
	WebsocketMessage *int64
	Timeout          *time.Duration
	UseProxy         *bool
}

// resolve fills unset fields from defaults.
func (p PartialOptions) resolve(defaults Options) Options {
	out := defaults
	if p.Action != nil {
		out.Action = *p.Action
	}
	if p.MaxUpload != nil {
		out.MaxUpload = *p.MaxUpload
	}
	if p.MaxDownload != nil {
		out.MaxDownload = *p.MaxDownload
	}
	if p.WebsocketMessage != nil {
		out.WebsocketMessage = *p.WebsocketMessage
	}
	if p.Timeout != nil {
		out.Timeout = *p.Timeout
	}
	if p.UseProxy != nil {
		out.UseProxy = *p.UseProxy
	}
	return out
}
