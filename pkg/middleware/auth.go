package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	jwtutil "github.com/Dias221467/FoodRescue/pkg/jwt"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userContextKey contextKey = "user"

// WithUser stores claims in ctx.
func WithUser(ctx context.Context, claims *jwtutil.Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// GetUserFromContext returns the authenticated claims, or nil.
func GetUserFromContext(ctx context.Context) *jwtutil.Claims {
	claims, _ := ctx.Value(userContextKey).(*jwtutil.Claims)
	return claims
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

func bearerClaims(r *http.Request, secret string) (*jwtutil.Claims, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}
	claims, err := jwtutil.ValidateToken(strings.TrimSpace(parts[1]), secret)
	if err != nil {
		logrus.WithError(err).WithField("path", r.URL.Path).Debug("Rejected bearer token")
		return nil, false
	}
	return claims, true
}

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := bearerClaims(r, secret)
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// RequireRole allows only users whose token carries one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r.Context())
			if claims == nil {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			logrus.WithFields(logrus.Fields{
				"userID": claims.UserID,
				"role":   claims.Role,
				"path":   r.URL.Path,
			}).Warn("Forbidden: insufficient role")
			writeMessage(w, http.StatusForbidden, "Forbidden")
		})
	}
}

// RequireSuperadmin allows only wallets for which isSuperadmin returns true.
func RequireSuperadmin(isSuperadmin func(wallet string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r.Context())
			if claims == nil {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if claims.Wallet == "" || !isSuperadmin(claims.Wallet) {
				writeMessage(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
