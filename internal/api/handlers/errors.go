package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"krishisetu-api-server/internal/api/middleware"
	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errInvalidID = errors.New("invalid id")

// respondError maps a ledger failure to its HTTP status and the
// {"message", "error"} body. Unclassified errors are logged and become 500.
func respondError(c *gin.Context, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, ledger.ErrInsufficientCapacity):
		status, kind = http.StatusBadRequest, "insufficient_capacity"
	case errors.Is(err, ledger.ErrAlreadyTerminal):
		status, kind = http.StatusBadRequest, "already_terminal"
	case errors.Is(err, ledger.ErrInvalidTransition):
		status, kind = http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, errInvalidID):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, ledger.ErrNotAuthorized):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, ledger.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrConcurrentModification):
		status, kind = http.StatusConflict, "conflict"
	}

	if status == http.StatusInternalServerError {
		logger.Log.WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(middleware.ContextRequestID),
		}).WithError(err).Error("unexpected error")
		c.AbortWithStatusJSON(status, gin.H{"message": "Server error", "error": kind})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error(), "error": kind})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": err.Error(), "error": "validation"})
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%s %q is not a valid id: %w", name, c.Param(name), errInvalidID)
	}
	return id, nil
}

// currentUser is the authenticated caller's id as set by middleware.Authenticate.
func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.ContextUserID))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid user in token", "error": "unauthorized"})
		return primitive.NilObjectID, false
	}
	return id, true
}
