package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akenov/fedauth/internal/authkit"
	"github.com/akenov/fedauth/internal/directory"
)

// userResponse is the public projection of a user record.
type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role,omitempty"`
}

// updateUserRequest is the validated payload for user updates.
type updateUserRequest struct {
	Name      string `json:"name" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	AvatarURL string `json:"avatarUrl"`
	Role      string `json:"role"`
}

func toUserResponse(user directory.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Role:      user.Role,
	}
}

// HandleListUsers returns all user records.
func HandleListUsers(logger *zap.Logger, store directory.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		records, listErr := store.List(contextGin)
		if listErr != nil {
			logger.Error("user list failed",
				zap.String("code", "api.users.list_failed"),
				zap.Error(listErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		responses := make([]userResponse, 0, len(records))
		for _, record := range records {
			responses = append(responses, toUserResponse(record))
		}
		contextGin.JSON(http.StatusOK, responses)
	}
}

// HandleCurrentUser resolves the caller's own record from the directory.
func HandleCurrentUser(logger *zap.Logger, store directory.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		claims := authkit.ClaimsFromContext(contextGin)
		if claims == nil || claims.Subject == "" {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.unauthenticated"})
			return
		}
		record, lookupErr := store.GetByID(contextGin, claims.Subject)
		if lookupErr != nil {
			if errors.Is(lookupErr, directory.ErrUserNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.unauthenticated"})
				return
			}
			logger.Error("current user lookup failed",
				zap.String("code", "api.users.me_failed"),
				zap.String("user_id", claims.Subject),
				zap.Error(lookupErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, toUserResponse(*record))
	}
}

// HandleGetUser fetches one user record by id.
func HandleGetUser(logger *zap.Logger, store directory.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		record, lookupErr := store.GetByID(contextGin, contextGin.Param("id"))
		if lookupErr != nil {
			if errors.Is(lookupErr, directory.ErrUserNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "api.users.not_found"})
				return
			}
			logger.Error("user lookup failed",
				zap.String("code", "api.users.get_failed"),
				zap.Error(lookupErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, toUserResponse(*record))
	}
}

// HandleUpdateUser replaces the mutable fields of a user record.
func HandleUpdateUser(logger *zap.Logger, store directory.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		var inbound updateUserRequest
		if bindErr := contextGin.BindJSON(&inbound); bindErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "api.users.invalid_payload"})
			return
		}
		record, updateErr := store.Update(contextGin, contextGin.Param("id"), directory.UpdateUser{
			Name:      inbound.Name,
			FirstName: inbound.FirstName,
			LastName:  inbound.LastName,
			Email:     inbound.Email,
			AvatarURL: inbound.AvatarURL,
			Role:      inbound.Role,
		})
		if updateErr != nil {
			if errors.Is(updateErr, directory.ErrUserNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "api.users.not_found"})
				return
			}
			logger.Error("user update failed",
				zap.String("code", "api.users.update_failed"),
				zap.Error(updateErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, toUserResponse(*record))
	}
}

// HandleDeleteUser removes a user record.
func HandleDeleteUser(logger *zap.Logger, store directory.Store) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		deleteErr := store.Delete(contextGin, contextGin.Param("id"))
		if deleteErr != nil {
			if errors.Is(deleteErr, directory.ErrUserNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "api.users.not_found"})
				return
			}
			logger.Error("user delete failed",
				zap.String("code", "api.users.delete_failed"),
				zap.Error(deleteErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.Status(http.StatusNoContent)
	}
}
