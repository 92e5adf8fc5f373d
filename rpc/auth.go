package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"gigchain/core/types"
	"gigchain/observability/logging"
)

type contextKey string

const contextKeyCaller contextKey = "rpc.caller"

// Authenticator resolves the caller identity from an HS256 bearer token. The
// identity is the token's sub claim.
type Authenticator struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
	logger    *slog.Logger
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{
		secret:    []byte(strings.TrimSpace(secret)),
		issuer:    strings.TrimSpace(issuer),
		clockSkew: 2 * time.Minute,
	}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool { return a != nil && len(a.secret) > 0 }

// Middleware attaches the caller to the request context when a valid token is
// presented. Requests without a token pass through; transition handlers
// reject them via requireCaller.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" || !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := a.Authenticate(tokenString)
		if err != nil {
			if a.logger != nil {
				a.logger.Warn("rpc: bearer token rejected",
					slog.String("requestId", w.Header().Get(requestIDHeader)),
					slog.String("authorization", logging.MaskBearer(r.Header.Get("Authorization"))),
					slog.String("error", err.Error()))
			}
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusUnauthorized, nil, codeUnauthorized, "invalid token", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate validates tokenString and returns the identity in its subject.
func (a *Authenticator) Authenticate(tokenString string) (types.Address, error) {
	if !a.Enabled() {
		return types.Address{}, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.clockSkew),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return types.Address{}, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return types.Address{}, errors.New("token invalid")
	}
	caller, err := types.ParseAddress(claims.Subject)
	if err != nil {
		return types.Address{}, fmt.Errorf("sub: %w", err)
	}
	if caller.IsZero() {
		return types.Address{}, errors.New("sub: null identity")
	}
	return caller, nil
}

// SignToken issues an HS256 token naming subject as the caller. A zero ttl
// issues a token without expiry.
func SignToken(secret, issuer string, subject types.Address, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("signing secret required")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject.Hex(),
		Issuer:   strings.TrimSpace(issuer),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func callerFromContext(ctx context.Context) (types.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(types.Address)
	return caller, ok
}

// requireCaller writes an unauthorized error and returns false when the
// request carries no authenticated identity.
func requireCaller(w http.ResponseWriter, r *http.Request, req *RPCRequest) (types.Address, bool) {
	caller, ok := callerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing bearer token", nil)
		return types.Address{}, false
	}
	return caller, true
}
