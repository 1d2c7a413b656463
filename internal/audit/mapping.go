package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Well-known auth actions.
var (
	Register      = ActionResource{Action: "register", Resource: "user"}
	Login         = ActionResource{Action: "login", Resource: "session"}
	Refresh       = ActionResource{Action: "refresh", Resource: "session"}
	Logout        = ActionResource{Action: "logout", Resource: "session"}
	DeleteSession = ActionResource{Action: "delete", Resource: "session"}
	RevokeSession = ActionResource{Action: "revoke", Resource: "session"}
)

var routeOverrides = map[string]ActionResource{
	"POST /auth/login":             Login,
	"POST /auth/login-web":         Login,
	"GET /auth/refresh-token":      Refresh,
	"POST /auth/refresh-token-web": Refresh,
	"DELETE /auth/logout":          Logout,
	"POST /auth/register":          Register,
	"DELETE /auth/sessions/device": DeleteSession,
	"DELETE /auth/sessions/:id":    RevokeSession,
	"GET /auth/me":                 {Action: "get", Resource: "user"},
	"GET /auth/sessions":           {Action: "list", Resource: "session"},
}

// ParseRoute returns action and resource for an HTTP method and route pattern
// (e.g. GET /auth/sessions). Known auth routes map to fixed pairs; others use
// the method verb and the last static path segment, singularised.
func ParseRoute(method, route string) ActionResource {
	if ar, ok := routeOverrides[method+" "+route]; ok {
		return ar
	}
	return ActionResource{Action: methodToAction(method), Resource: routeToResource(route)}
}

func routeToResource(route string) string {
	segs := strings.Split(strings.Trim(route, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s == "" || strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			continue
		}
		s = strings.ToLower(s)
		if len(s) > 1 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
			s = s[:len(s)-1]
		}
		return s
	}
	return "unknown"
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
