// Package testutils содержит вспомогательные функции для тестов хендлеров.
package testutils

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams кладёт параметры маршрута в контекст запроса, чтобы
// хендлеры можно было вызывать в тестах напрямую, без поднятия роутера.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for name, value := range params {
		rctx.URLParams.Add(name, value)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}
