package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// Route overrides: role changes are audited as role_changed on resource "profile".
var routeOverrides = map[string]ActionResource{
	"PUT /profile/{id}/role": {Action: "role_changed", Resource: "profile"},
}

// ParseRoute returns action and resource for an HTTP method and route pattern
// (e.g. PUT /profile/{id}). The resource is the first path segment; the action
// is derived from the method: GET -> get, POST -> create, PUT/PATCH -> update,
// DELETE -> delete.
func ParseRoute(method, pattern string) ActionResource {
	method = strings.ToUpper(method)
	if ar, ok := routeOverrides[method+" "+pattern]; ok {
		return ar
	}
	return ActionResource{Action: methodToAction(method), Resource: patternToResource(pattern)}
}

func patternToResource(pattern string) string {
	p := strings.Trim(pattern, "/")
	if p == "" {
		return "unknown"
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	if strings.HasPrefix(p, "{") {
		return "unknown"
	}
	return strings.ToLower(p)
}

func methodToAction(method string) string {
	switch method {
	case "GET", "HEAD":
		return "get"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
