package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie carrying the session id.
const CookieName = "sid"

type contextKey struct{}

// Factory returns the Session for a session id.
type Factory func(sessionID string) Session

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request's session, if the middleware attached one.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Middleware attaches a Session to every request. Requests without a valid
// session cookie get a fresh uuid id and a Set-Cookie.
func Middleware(factory Factory, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(CookieName); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
			log.Debug().Str("sessionId", id).Msg("New session issued")
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), factory(id))))
	})
}

// MemoryStore keeps one Memory session per id for the lifetime of the
// process.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Memory
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Memory)}
}

// Session returns the session for id, creating it on first use.
func (s *MemoryStore) Session(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	if !ok {
		m = NewMemory()
		s.sessions[id] = m
	}
	return m
}
