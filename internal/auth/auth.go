package auth

import (
	"context"
	"net/http"

	"github.com/gorilla/sessions"
)

const userIDKey = "user_id"

type ctxKey struct{}

// Sessions reads the authenticated user from a signed cookie session. The
// login flow that writes the session lives outside this service.
type Sessions struct {
	store *sessions.CookieStore
	name  string
}

func NewSessions(secret, name string) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if name == "" {
		name = "ascended-session"
	}
	return &Sessions{store: store, name: name}
}

// GetUserIDFromSession returns the session's user ID, or 0 when there is none.
func (s *Sessions) GetUserIDFromSession(r *http.Request) int {
	session, err := s.store.Get(r, s.name)
	if err != nil {
		return 0
	}
	id, ok := session.Values[userIDKey].(int)
	if !ok || id <= 0 {
		return 0
	}
	return id
}

// SetUserID stores userID in the session cookie.
func (s *Sessions) SetUserID(w http.ResponseWriter, r *http.Request, userID int) error {
	session, _ := s.store.Get(r, s.name)
	session.Values[userIDKey] = userID
	return session.Save(r, w)
}

// AuthMiddleware rejects requests without a session user and puts the user
// ID on the request context.
func (s *Sessions) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.GetUserIDFromSession(r)
		if id == 0 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the user ID placed on ctx by AuthMiddleware, or 0.
func UserID(ctx context.Context) int {
	id, _ := ctx.Value(ctxKey{}).(int)
	return id
}
