// Package auth provides API key authentication for gRPC services.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// healthMethodPrefix is exempt so load balancers can probe without a key.
const healthMethodPrefix = "/grpc.health.v1.Health/"

// Authenticator validates API keys against the configured set.
// An Authenticator with no keys accepts every request.
type Authenticator struct {
	keys [][]byte
}

// NewAuthenticator creates an authenticator for the given keys.
func NewAuthenticator(keys []string) *Authenticator {
	a := &Authenticator{keys: make([][]byte, len(keys))}
	for i, k := range keys {
		a.keys[i] = []byte(k)
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0
}

// Authenticate checks apiKey against every configured key.
// All keys are compared so timing does not reveal which one matched.
func (a *Authenticator) Authenticate(apiKey string) error {
	if apiKey == "" {
		return ErrMissingKey
	}
	candidate := []byte(apiKey)
	matched := 0
	for _, k := range a.keys {
		matched |= subtle.ConstantTimeCompare(candidate, k)
	}
	if matched != 1 {
		return ErrInvalidKey
	}
	return nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !a.Enabled() || strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		var apiKey string
		if values := md.Get(MetadataKey); len(values) > 0 {
			apiKey = values[0]
		}
		if err := a.Authenticate(apiKey); err != nil {
			log.Debug().Str("method", info.FullMethod).Err(err).Msg("Rejected unauthenticated request")
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}
