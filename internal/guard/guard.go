// Package guard decides what a protected page or endpoint does with the caller:
// render, send them to sign in, or send them to the unauthorized page.
//
// Resolve never returns an error. Every outcome, including a failed identity
// lookup, is a Decision the transport turns into a response.
package guard

import (
	"civicportal/internal/authz"
	"civicportal/internal/service"
	"context"
	"errors"
	"net/url"

	"github.com/sirupsen/logrus"
)

var errResolverUnavailable = errors.New("identity resolver unavailable")

type State string

const (
	StateChecking        State = "checking"
	StateAuthorized      State = "authorized"
	StateUnauthenticated State = "unauthenticated"
	StateUnauthorized    State = "unauthorized"
	StateError           State = "error"
)

const (
	DefaultSignInPath       = "/auth/signin"
	DefaultUnauthorizedPath = "/unauthorized"
)

// Resolver turns a session token into an identity. Absent identities are (nil, nil).
type Resolver interface {
	ValidateSession(ctx context.Context, token string) (*service.Identity, error)
}

// Requirement is what a protected route asks of its caller. The zero value
// admits any signed-in user.
type Requirement struct {
	Role       string
	Capability authz.Action
}

func AnyUser() Requirement { return Requirement{} }

func RequireRole(role string) Requirement { return Requirement{Role: role} }

func RequireCapability(a authz.Action) Requirement { return Requirement{Capability: a} }

// Satisfied reports whether role meets the requirement. Roles must match exactly.
func (r Requirement) Satisfied(role string) bool {
	if r.Role != "" && r.Role != role {
		return false
	}
	if r.Capability != "" && !authz.HasCapability(role, r.Capability) {
		return false
	}
	return true
}

// Decision is the outcome of one guard check.
type Decision struct {
	State    State
	Identity *service.Identity
	// Redirect is the path to navigate to; empty when authorized or abandoned.
	Redirect string
	// Message is an inline, user-facing explanation for the error state.
	Message string
}

// Allowed reports whether the protected content may be rendered.
func (d Decision) Allowed() bool {
	return d.State == StateAuthorized && d.Identity != nil
}

// Abandoned reports whether the check was cancelled before it resolved.
func (d Decision) Abandoned() bool {
	return d.State == StateChecking
}

// RedirectURL builds the navigation target. next is carried to the sign-in page.
func (d Decision) RedirectURL(next string) string {
	if d.Redirect == "" {
		return ""
	}
	q := url.Values{}
	switch d.State {
	case StateUnauthenticated:
		if next != "" {
			q.Set("next", next)
		}
	case StateUnauthorized:
		q.Set("reason", "forbidden")
	case StateError:
		q.Set("reason", "error")
	}
	if len(q) == 0 {
		return d.Redirect
	}
	return d.Redirect + "?" + q.Encode()
}

type Guard struct {
	resolver         Resolver
	signInPath       string
	unauthorizedPath string
}

type Option func(*Guard)

func WithSignInPath(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.signInPath = path
		}
	}
}

func WithUnauthorizedPath(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.unauthorizedPath = path
		}
	}
}

func New(resolver Resolver, opts ...Option) *Guard {
	g := &Guard{
		resolver:         resolver,
		signInPath:       DefaultSignInPath,
		unauthorizedPath: DefaultUnauthorizedPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guard) SignInPath() string { return g.signInPath }

func (g *Guard) UnauthorizedPath() string { return g.unauthorizedPath }

type resolution struct {
	identity *service.Identity
	err      error
}

// Resolve checks token against req. If ctx is cancelled first, the lookup is
// abandoned and the decision stays in StateChecking.
func (g *Guard) Resolve(ctx context.Context, token string, req Requirement) Decision {
	if ctx.Err() != nil {
		return Decision{State: StateChecking}
	}

	done := make(chan resolution, 1)
	go func() {
		ident, err := g.lookup(ctx, token)
		done <- resolution{identity: ident, err: err}
	}()

	var res resolution
	select {
	case <-ctx.Done():
		return Decision{State: StateChecking}
	case res = <-done:
	}
	// 结果返回时请求可能已结束，不再提交
	if ctx.Err() != nil {
		return Decision{State: StateChecking}
	}

	d := g.decide(res, req)
	entry := logrus.WithField("state", d.State)
	if d.Identity != nil && d.Identity.User != nil {
		entry = entry.WithField("user_id", d.Identity.User.ID)
	}
	if res.err != nil {
		entry.WithError(res.err).Warn("route guard lookup failed")
	} else {
		entry.Debug("route guard resolved")
	}
	return d
}

func (g *Guard) lookup(ctx context.Context, token string) (ident *service.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("route guard resolver panicked")
			ident, err = nil, errResolverUnavailable
		}
	}()
	if g.resolver == nil {
		return nil, errResolverUnavailable
	}
	return g.resolver.ValidateSession(ctx, token)
}

func (g *Guard) decide(res resolution, req Requirement) Decision {
	if res.err != nil {
		// 不重试：查询失败与拒绝同样处理
		return Decision{
			State:    StateError,
			Redirect: g.unauthorizedPath,
			Message:  service.PublicMessage(res.err),
		}
	}
	if res.identity == nil || res.identity.User == nil {
		return Decision{State: StateUnauthenticated, Redirect: g.signInPath}
	}
	if !req.Satisfied(res.identity.User.Role) {
		return Decision{State: StateUnauthorized, Identity: res.identity, Redirect: g.unauthorizedPath}
	}
	return Decision{State: StateAuthorized, Identity: res.identity}
}
