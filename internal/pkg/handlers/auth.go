package handlers

import (
	"context"

	"github.com/jake-scott/alice-bridge/internal/pkg/store"
	"github.com/jake-scott/alice-bridge/pkg/middlewares"
)

// TokenValidator resolves bearer tokens against the user store
func TokenValidator(b store.Backend) middlewares.TokenValidatorFunc {
	return func(ctx context.Context, token string) (middlewares.Principal, error) {
		u, err := b.UserByToken(ctx, token)
		if err != nil {
			return middlewares.Principal{}, err
		}

		return middlewares.Principal{UserID: u.ID, Nickname: u.Nickname}, nil
	}
}
