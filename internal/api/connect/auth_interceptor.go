// Package connect provides the Connect RPC surface of the player.
package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"
)

const (
	// PlayerTokenHeader is the header name for the command authentication token.
	PlayerTokenHeader = "X-Player-Token"
)

// NewTokenAuthInterceptor creates an interceptor that validates the player token
// from request metadata. An empty token disables the check.
func NewTokenAuthInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token == "" {
				return next(ctx, req)
			}

			// Extract token from metadata
			got := req.Header().Get(PlayerTokenHeader)
			if got == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			// Validate token
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}

			return next(ctx, req)
		}
	}
}

// NewTokenHeaderInterceptor attaches the player token to outgoing requests.
func NewTokenHeaderInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" && req.Spec().IsClient {
				req.Header().Set(PlayerTokenHeader, token)
			}
			return next(ctx, req)
		}
	}
}
