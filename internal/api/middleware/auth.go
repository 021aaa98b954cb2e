package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"signalboard/pkg/crypto"
	"signalboard/pkg/ratelimit"
)

// tokenVerifier проверяет bearer токен против bcrypt-хеша.
//
// bcrypt-проверка дорогая (сотни миллисекунд), поэтому токен,
// однажды прошедший проверку, запоминается и дальше сравнивается
// constant-time сравнением. Холодные проверки идут через rate limiter:
// перебор токенов упирается в лимит, а не в CPU.
type tokenVerifier struct {
	hash    string
	limiter *ratelimit.RateLimiter

	mu    sync.RWMutex
	known string
}

func newTokenVerifier(hash string) *tokenVerifier {
	return &tokenVerifier{
		hash:    hash,
		limiter: ratelimit.NewRateLimiter(2, 5),
	}
}

func (v *tokenVerifier) verify(token string) bool {
	v.mu.RLock()
	known := v.known
	v.mu.RUnlock()

	if known != "" && subtle.ConstantTimeCompare([]byte(token), []byte(known)) == 1 {
		return true
	}

	if !v.limiter.Allow() {
		return false
	}

	if !crypto.CheckTokenMatch(token, v.hash) {
		return false
	}

	v.mu.Lock()
	v.known = token
	v.mu.Unlock()
	return true
}

// Auth - middleware аутентификации по bearer токену.
//
// tokenHash - bcrypt-хеш токена (API_TOKEN_HASH). Пустой хеш отключает
// проверку: локальное развертывание на одной машине с ботом работает
// без токена.
//
// Клиенты передают токен как Authorization: Bearer <token>.
func Auth(tokenHash string, log *zap.Logger) func(http.Handler) http.Handler {
	if tokenHash == "" {
		log.Warn("API_TOKEN_HASH is not set, API authentication disabled")
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	verifier := newTokenVerifier(tokenHash)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !verifier.verify(token) {
				log.Warn("rejected api token", zap.String("remote", r.RemoteAddr))
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
