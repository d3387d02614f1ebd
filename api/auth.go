/*
auth.go - JWT issuing and request authentication

PURPOSE:
  Login hands out an HS256 token whose subject is the employee ID and
  whose extra claims carry the role. Authenticate verifies the Bearer
  token on every protected route and tags the request context with the
  caller, both for handlers (claimsFromContext) and for the audit trail
  (leave.ContextWithActor).

ROLES:
  RequireRole guards HRD-only routes. Handlers that let employees act on
  their own records check the subject themselves (authorizeSubject).

SEE ALSO:
  - server.go: Where the middleware is mounted
  - leave/context.go: Audit actor propagation
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// Claims are the JWT claims issued at login. Subject is the employee ID.
type Claims struct {
	Name string     `json:"name"`
	Role leave.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, expiration time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), expiration: expiration, now: time.Now}
}

// Issue returns a signed token for emp and its expiry.
func (t *TokenIssuer) Issue(emp leave.Employee) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.expiration)
	claims := Claims{
		Name: emp.Name,
		Role: emp.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   emp.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies tokenString and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type claimsKey struct{}

func claimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Authenticate rejects requests without a valid Bearer token.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header required", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeError(w, http.StatusUnauthorized, "Authorization header format must be Bearer {token}", nil)
			return
		}

		claims, err := h.Tokens.Parse(parts[1])
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			} else if errors.Is(err, jwt.ErrTokenNotValidYet) {
				msg = "Token not valid yet"
			}
			h.logger.Debug("token rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, msg, nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = leave.ContextWithActor(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers holding one of roles. Mount after Authenticate.
func RequireRole(roles ...leave.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
		})
	}
}

// authorizeSubject lets HRD act for anyone and everyone else act for
// themselves. It writes the 403 itself and reports whether to continue.
func authorizeSubject(w http.ResponseWriter, r *http.Request, employeeID string) bool {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return false
	}
	if claims.Role == leave.RoleHRD || claims.Subject == employeeID {
		return true
	}
	writeError(w, http.StatusForbidden, "You may only act on your own leave requests", nil)
	return false
}
