package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// lastActiveInterval bounds how often one user's activity is written back.
const lastActiveInterval = time.Minute

// LastActiveUpdater records that a user made a request.
type LastActiveUpdater interface {
	UpdateLastActive(ctx context.Context, userID primitive.ObjectID) error
}

// UpdateLastActiveMiddleware stamps the caller's last activity time, at most
// once per lastActiveInterval per user. Failures are logged and never block
// the request.
func UpdateLastActiveMiddleware(users LastActiveUpdater) func(http.Handler) http.Handler {
	var (
		mu   sync.Mutex
		seen = map[primitive.ObjectID]time.Time{}
	)
	due := func(id primitive.ObjectID, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if last, ok := seen[id]; ok && now.Sub(last) < lastActiveInterval {
			return false
		}
		seen[id] = now
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := GetUserFromContext(r.Context()); claims != nil {
				userID, err := primitive.ObjectIDFromHex(claims.UserID)
				if err == nil && due(userID, time.Now()) {
					if err := users.UpdateLastActive(r.Context(), userID); err != nil {
						logrus.WithError(err).WithField("user_id", claims.UserID).Warn("Failed to update last activity")
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
