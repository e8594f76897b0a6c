package ratelimit

// Action names a rate-limited operation
type Action string

const (
	ActionUpload      Action = "upload"
	ActionDelete      Action = "delete"
	ActionSetSettings Action = "settings"
)

// ActionConfig defines the limit for one action
type ActionConfig struct {
	Action        Action
	Limit         int64 // Requests allowed per window
	WindowSeconds int   // Time window in seconds
}

// DefaultWindowSeconds is used when a config leaves the window unset
const DefaultWindowSeconds = 60

// NewActionConfig builds a per-minute limit for action
func NewActionConfig(action Action, perMinute int64) ActionConfig {
	return ActionConfig{
		Action:        action,
		Limit:         perMinute,
		WindowSeconds: DefaultWindowSeconds,
	}
}

func (c ActionConfig) window() int {
	if c.WindowSeconds <= 0 {
		return DefaultWindowSeconds
	}
	return c.WindowSeconds
}
