package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// AdminAuth пропускает запрос дальше только когда идентификатор
// администратора из заголовка входит в список ADMIN_IDS. Идентификатор
// берётся из Authorization: Bearer <id> либо из X-Admin-Id.
func AdminAuth(adminIDs string, log *zap.Logger) func(http.Handler) http.Handler {
	allowed := parseAdminIDs(adminIDs)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := adminIDFromRequest(r)
			if id == "" {
				http.Error(w, "Missing admin credentials", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[id]; !ok {
				log.Warn("admin access denied",
					zap.String("admin_id", id), zap.String("path", r.URL.Path))
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseAdminIDs(raw string) map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			allowed[id] = struct{}{}
		}
	}
	return allowed
}

func adminIDFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Admin-Id"))
}
