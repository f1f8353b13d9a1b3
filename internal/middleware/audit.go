package middleware

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
)

const maxAuditBody = 2000

var sensitiveField = regexp.MustCompile(`(?i)("(?:password|new_password|old_password|confirm_password|token|refresh_token|secret|api_key)"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// AuditLog writes one system_logs row per mutating request (POST, PUT, PATCH, DELETE).
// Multipart bodies are not captured.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "PATCH" && method != "DELETE" {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = maskSensitiveFields(string(bodyBytes))
			if len(bodySnippet) > maxAuditBody {
				bodySnippet = bodySnippet[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}
		extra := map[string]interface{}{
			"method": method,
			"path":   c.Request.URL.Path,
			"status": status,
			"body":   bodySnippet,
		}
		if rid := c.GetString(ContextRequestID); rid != "" {
			extra["request_id"] = rid
		}

		message := formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status)
		if status >= 500 {
			services.LogError(module, action, message, uid, c.ClientIP(), c.Request.UserAgent(), extra)
			return
		}
		services.LogInfo(module, action, message, uid, c.ClientIP(), c.Request.UserAgent(), extra)
	}
}

// routeVerbs are trailing route segments that name an action rather than a collection.
var routeVerbs = map[string]bool{
	"approve": true, "reject": true, "promote": true, "demote": true,
	"apply": true, "leave": true, "check-in": true, "attendance": true,
	"read": true, "read-all": true, "visibility": true, "role": true, "active": true,
	"signup": true, "login": true, "logout": true, "refresh": true,
	"forgot-password": true, "reset-password": true, "change-password": true,
}

// parseRouteInfo derives module and action from a route template.
//
//	POST   /api/studies/:id/applications/:appId/approve -> applications, approve
//	DELETE /api/studies/:id/posts/:postId               -> posts, delete
//	PUT    /api/studies/:id                             -> studies, update
func parseRouteInfo(fullPath, method string) (module, action string) {
	var names []string
	for _, s := range strings.Split(strings.TrimPrefix(fullPath, "/api/"), "/") {
		if s != "" && !strings.HasPrefix(s, ":") && !strings.HasPrefix(s, "*") {
			names = append(names, s)
		}
	}

	switch method {
	case "POST":
		action = "create"
	case "PUT", "PATCH":
		action = "update"
	case "DELETE":
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	if len(names) == 0 {
		return "unknown", action
	}

	last := names[len(names)-1]
	if routeVerbs[last] && len(names) > 1 {
		return names[len(names)-2], last
	}
	return last, action
}

func formatAuditMessage(username, method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	if username == "" {
		username = "anonymous"
	}
	b.WriteString(username)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" -> ")
	if status >= 200 && status < 300 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed")
	}
	return b.String()
}

// maskSensitiveFields replaces credential values in a JSON body with ***.
func maskSensitiveFields(body string) string {
	return sensitiveField.ReplaceAllString(body, `$1"***"`)
}
