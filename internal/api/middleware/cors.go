package middleware

import (
	"net/http"
	"strings"
)

// CORS - middleware для Cross-Origin Resource Sharing.
//
// allowedOrigins - список разрешенных origin через запятую
// (значение CORS_ALLOWED_ORIGINS). Пустая строка или "*" разрешает все:
// дашборд часто разворачивают на одной машине с backend-ом, и в
// локальной конфигурации список не задают.
//
// Запросы без Origin (curl, бот, мониторинг) пропускаются всегда.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	allowAll := allowedOrigins == "" || allowedOrigins == "*"
	allowed := make(map[string]struct{})
	for _, origin := range strings.Split(allowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case origin == "":
				// Не браузер - CORS заголовки не нужны
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", origin)
			default:
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				// Неразрешенный origin не получает заголовков - браузер заблокирует
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Preflight запросы завершаются здесь
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
