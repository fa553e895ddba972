// Package identity works out who is sitting at this terminal.
package identity

import (
	"context"
	"errors"
	"os"
	"os/user"
	"strings"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/model"
)

// ErrUnknownUser is returned when no source yields a user id.
var ErrUnknownUser = errors.New("cannot determine current user")

// Environment overrides, checked after the configured user.
const (
	EnvUserID = "RETRO_USER"
	EnvName   = "RETRO_NAME"
)

// Resolver resolves the current participant from, in order: the configured
// user, RETRO_USER/RETRO_NAME, and the operating system account.
type Resolver struct {
	Configured model.User

	// Overridable for tests.
	getenv  func(string) string
	current func() (*user.User, error)
}

var _ board.IdentityResolver = (*Resolver)(nil)

// NewResolver returns a Resolver that prefers configured.
func NewResolver(configured model.User) *Resolver {
	return &Resolver{Configured: configured, getenv: os.Getenv, current: user.Current}
}

// CurrentUser implements board.IdentityResolver.
func (r *Resolver) CurrentUser(ctx context.Context) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u := r.Configured
	u.ID = strings.TrimSpace(u.ID)

	if u.ID == "" {
		u.ID = strings.TrimSpace(r.getenv(EnvUserID))
	}
	if u.DisplayName == "" {
		u.DisplayName = strings.TrimSpace(r.getenv(EnvName))
	}
	if u.ID == "" || u.DisplayName == "" {
		if osUser, err := r.current(); err == nil {
			if u.ID == "" {
				u.ID = osUser.Username
			}
			if u.DisplayName == "" {
				u.DisplayName = firstNonEmpty(osUser.Name, osUser.Username)
			}
		}
	}
	if u.ID == "" {
		return model.User{}, ErrUnknownUser
	}
	if u.DisplayName == "" {
		u.DisplayName = u.ID
	}
	return u, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
