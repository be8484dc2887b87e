package middleware

import "net/http"

// 決済APIが受け付けるメソッドとヘッダー。JSONボディのみを扱うため
// リクエストヘッダーはContent-Typeだけを許可する。
const (
	corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowedHeaders = "Content-Type"
	corsMaxAgeSeconds  = "86400"
)

// NewCORSMiddleware は決済フロントエンドのオリジンだけを許可するCORSミドルウェアを返す。
// credentials送信と併用するため、オリジンのワイルドカード(*)は許可しない。
// プリフライト（OPTIONS）はここで204を返し、後続のハンドラーには到達させない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", corsMaxAgeSeconds)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
