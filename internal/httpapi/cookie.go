package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ent0n29/speakwell/internal/session"
)

const sessionCookieName = "speakwell_session"

var errBadCookie = errors.New("invalid session cookie")

// cookieCodec signs session ids so a client cannot present a guessed id.
type cookieCodec struct {
	key []byte
}

// newCookieCodec falls back to a per-process random key when secret is empty.
func newCookieCodec(secret string) cookieCodec {
	if strings.TrimSpace(secret) == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	return cookieCodec{key: []byte(secret)}
}

func (c cookieCodec) encode(sessionID string) string {
	return sessionID + "." + c.sign(sessionID)
}

func (c cookieCodec) decode(value string) (string, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", errBadCookie
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", errBadCookie
	}
	return id, nil
}

func (c cookieCodec) sign(id string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.cookies.encode(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.SessionInactivityTimeout.Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// sessionFromRequest resolves the signed cookie to a live session.
func (s *Server) sessionFromRequest(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, err
	}
	id, err := s.cookies.decode(c.Value)
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(id)
}

type sessionKey struct{}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessionFromRequest(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "Login required.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}
