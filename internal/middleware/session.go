package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

const (
	sessionCookieName = "chat_session"
	sessionCookieTTL  = 365 * 24 * time.Hour
)

// SessionMiddleware выдаёт и проверяет подписанный cookie сессии чата.
// Посетитель без валидного cookie получает новую сессию прозрачно для себя.
type SessionMiddleware struct {
	secretKey []byte
}

// NewSessionMiddleware создаёт middleware сессий с указанным секретным ключом.
// Ключ обязан быть непустым: значение по умолчанию подставляет вызывающий код.
func NewSessionMiddleware(secret string) *SessionMiddleware {
	if secret == "" {
		panic("session middleware: empty secret")
	}

	return &SessionMiddleware{
		secretKey: []byte(secret),
	}
}

// Middleware кладёт идентификатор сессии чата в контекст запроса, создавая
// новую сессию при отсутствии или порче cookie.
func (m *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string

		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if id, ok := m.parseCookie(cookie.Value); ok {
				sessionID = id
			}
		}

		if sessionID == "" {
			sessionID = newSessionID()
			m.setCookie(w, sessionID)
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read из crypto/rand не возвращает ошибок на поддерживаемых платформах.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func (m *SessionMiddleware) setCookie(w http.ResponseWriter, sessionID string) {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    m.sign(sessionID),
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (m *SessionMiddleware) sign(sessionID string) string {
	mac := hmac.New(sha256.New, m.secretKey)
	mac.Write([]byte(sessionID))
	signature := mac.Sum(nil)
	return sessionID + "." + hex.EncodeToString(signature)
}

func (m *SessionMiddleware) parseCookie(cookieValue string) (string, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 2 {
		return "", false
	}

	sessionID := parts[0]
	if sessionID == "" {
		return "", false
	}

	expected := m.sign(sessionID)
	expectedParts := strings.Split(expected, ".")
	if len(expectedParts) != 2 {
		return "", false
	}

	if !hmac.Equal([]byte(parts[1]), []byte(expectedParts[1])) {
		return "", false
	}

	return sessionID, true
}

// GetSessionIDFromContext извлекает идентификатор сессии чата из контекста запроса.
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok
}
