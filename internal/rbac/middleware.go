package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/platform/httpx"
	"github.com/gazette-cms/gazette/internal/shared"
)

// DenialRecorder counts authorization denials.
type DenialRecorder interface {
	RecordAuthEvent(event, outcome string)
}

// PrincipalResolver turns a session into a principal that is still valid,
// failing with a shared.ErrUnauthenticated kind when it is not.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, sess *shared.Session) (*Principal, error)
}

// Middleware wires authorization helpers for HTTP handlers. Without a
// Resolver the principal is read from the session alone.
type Middleware struct {
	Logger   *slog.Logger
	Metrics  DenialRecorder
	Resolver PrincipalResolver
}

// Require admits requests whose session role is in set.
func (m Middleware) Require(set RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := m.principal(r)
			if err != nil && !errors.Is(err, shared.ErrUnauthenticated) {
				if m.Logger != nil {
					m.Logger.Error("resolve principal", slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if err := Authorize(p, set); err != nil {
				m.deny(w, r, err, set)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), *p)))
		})
	}
}

func (m Middleware) principal(r *http.Request) (*Principal, error) {
	sess := shared.SessionFromContext(r.Context())
	if m.Resolver != nil {
		return m.Resolver.ResolvePrincipal(r.Context(), sess)
	}
	p, ok := PrincipalFromSession(sess)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error, set RoleSet) {
	outcome := "forbidden"
	if errors.Is(err, ErrUnauthenticated) {
		outcome = "unauthenticated"
	}
	if m.Metrics != nil {
		m.Metrics.RecordAuthEvent("authorize", outcome)
	}
	if m.Logger != nil {
		m.Logger.Debug("rbac deny", slog.String("path", r.URL.Path), slog.String("required", set.String()), slog.String("outcome", outcome))
	}
	httpx.RespondError(w, err)
}

// PrincipalFromSession extracts the identity bound to sess, if any. It does
// not consult the credential store.
func PrincipalFromSession(sess *shared.Session) (*Principal, bool) {
	if sess == nil || sess.Destroyed() {
		return nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return nil, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	role := accounts.Role(sess.Role())
	if !role.Valid() {
		return nil, false
	}
	return &Principal{ID: id, Role: role}, true
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authorized principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by Require.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok {
		return nil, false
	}
	return &p, true
}
