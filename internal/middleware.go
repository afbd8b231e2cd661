package internal

import (
	"net/http"

	"github.com/go-kit/kit/endpoint"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"golang.org/x/net/context"
)

// EnsureUserLoggedIn is a middleware that checks if there is a valid user session for the current call
func EnsureUserLoggedIn(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		user := ctxhelper.User(ctx)
		if user == nil {
			// Nobody logged in
			return nil, MakeError(
				http.StatusForbidden,
				ErrCodeNotLoggedIn,
				"This function needs a logged-in user",
			)
		}
		return next(ctx, request)
	}
}

// EnsureAdmin is a middleware that checks if the current call is made by a logged-in admin.
// Request decisions and crate mutations are venue-staff territory
func EnsureAdmin(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		user := ctxhelper.User(ctx)
		if user == nil {
			return nil, MakeError(
				http.StatusForbidden,
				ErrCodeNotLoggedIn,
				"This function needs a logged-in user",
			)
		}
		if !user.IsAdmin() {
			return nil, MakeError(
				http.StatusForbidden,
				ErrCodeAdminOnly,
				"This function is restricted to admins",
			)
		}
		return next(ctx, request)
	}
}
