// Package identity carries who is making a request: the anonymous browser
// visitor and, when signed in, the account behind it.
package identity

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"buildea/api/internal/rbac"
)

const (
	// CookieName holds the anonymous visitor id.
	CookieName = "buildea_vid"
	// HeaderName lets non-browser clients supply the visitor id.
	HeaderName = "X-Visitor-ID"
	// CookieMaxAge is one year, in seconds.
	CookieMaxAge = 365 * 24 * 60 * 60

	visitorPrefix = "v_"
	userPrefix    = "u_"
	suffixLength  = 8
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Session is the single request identity. VisitorID is always set by the
// visitor middleware; UserID is empty for anonymous requests.
type Session struct {
	VisitorID   string
	UserID      string
	DisplayName string
	Email       string
	Role        rbac.Role
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// LikeIdentifier is the key likes are recorded under. Signed-in users like
// as their account so the like follows them across browsers.
func (s Session) LikeIdentifier() string {
	if s.UserID != "" {
		return userPrefix + s.UserID
	}
	return s.VisitorID
}

// EffectiveRole is the role used for authorization.
func (s Session) EffectiveRole() rbac.Role {
	if s.UserID == "" {
		return rbac.RoleVisitor
	}
	return rbac.Normalize(string(s.Role))
}

func (s Session) Can(action rbac.Action) bool {
	return rbac.Can(s.EffectiveRole(), action)
}

// UserIDPtr returns nil for anonymous sessions, for optional author fields.
func (s Session) UserIDPtr() *string {
	if s.UserID == "" {
		return nil
	}
	id := s.UserID
	return &id
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the request session, or an anonymous zero session.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}

// NewVisitorID returns v_<unix millis base36>_<8 random base36 chars>.
func NewVisitorID(now time.Time) (string, error) {
	suffix := make([]byte, suffixLength)
	max := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = base36[n.Int64()]
	}
	return visitorPrefix + strconv.FormatInt(now.UnixMilli(), 36) + "_" + string(suffix), nil
}

// ValidVisitorID reports whether id has the shape NewVisitorID produces.
func ValidVisitorID(id string) bool {
	rest, ok := strings.CutPrefix(id, visitorPrefix)
	if !ok {
		return false
	}
	stamp, suffix, ok := strings.Cut(rest, "_")
	if !ok || stamp == "" || len(stamp) > 12 || len(suffix) != suffixLength {
		return false
	}
	return isBase36(stamp) && isBase36(suffix)
}

func isBase36(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(base36, r) {
			return false
		}
	}
	return true
}
