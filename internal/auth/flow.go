package auth

import "strings"

// Flow is how the browser runs the Google sign-in.
type Flow string

const (
	FlowPopup    Flow = "popup"
	FlowRedirect Flow = "redirect"
)

// SelectFlow picks a full-page redirect for installed apps, where popups
// are unreliable, and a popup otherwise.
func SelectFlow(displayMode string, standalone bool) Flow {
	if standalone {
		return FlowRedirect
	}
	switch strings.ToLower(strings.TrimSpace(displayMode)) {
	case "standalone", "fullscreen", "minimal-ui":
		return FlowRedirect
	}
	return FlowPopup
}
