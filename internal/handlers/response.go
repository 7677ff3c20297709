package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Dias221467/FoodRescue/internal/models"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/Dias221467/FoodRescue/pkg/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps service and repository errors onto HTTP statuses.
// Anything unrecognised is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &verr),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrDuplicateClaim),
		errors.Is(err, services.ErrItemUnavailable),
		errors.Is(err, services.ErrClaimExpired):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads the body into dst and runs its validate tags.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &services.ValidationError{Message: "Invalid request payload"}
	}
	return validateStruct(dst)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
// An empty body leaves dst untouched, whatever the Content-Length says.
func decodeOptionalJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &services.ValidationError{Message: "Invalid request payload"}
	}
	return validateStruct(dst)
}

func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &services.ValidationError{Field: lowerFirst(fe.Field()), Message: describeTag(fe)}
	}
	return &services.ValidationError{Message: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "invalid email format"
	}
	return "is invalid"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// pathID parses the {id} route variable.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		return primitive.NilObjectID, &services.ValidationError{Message: "Invalid " + name + " ID"}
	}
	return id, nil
}

// currentActor returns the caller from the token set by AuthMiddleware.
func currentActor(r *http.Request) (services.Actor, error) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		return services.Actor{}, services.ErrUnauthorized
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return services.Actor{}, services.ErrUnauthorized
	}
	return services.Actor{UserID: id, Role: models.Role(claims.Role)}, nil
}
