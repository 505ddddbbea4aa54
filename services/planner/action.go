package planner

import "fmt"

// UpdateAction is a chat-platform facet that has to be pushed.
type UpdateAction int

const (
	InitGreeting UpdateAction = iota + 1
	InitMenu
	InitDescription
	InitURLWhitelist
)

// FirstDeploymentActions is the fixed order used when nothing was deployed yet.
var FirstDeploymentActions = []UpdateAction{InitGreeting, InitMenu, InitDescription, InitURLWhitelist}

func (a UpdateAction) String() string {
	switch a {
	case InitGreeting:
		return "get_started"
	case InitMenu:
		return "persistent_menu"
	case InitDescription:
		return "app_description"
	case InitURLWhitelist:
		return "url_whitelist"
	default:
		return fmt.Sprintf("UpdateAction(%d)", int(a))
	}
}

// MarshalText renders the action name in reports and events.
func (a UpdateAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
