package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/immxrtalbeast/missionops/internal/service"
)

const userKey = "user"

// RequireAuth rejects requests without a valid credential.
func RequireAuth(auth service.Authenticator, cookieName string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, err := auth.Authenticate(ctx.Request.Context(), service.ExtractToken(ctx.Request, cookieName))
		if err != nil {
			writeError(ctx, err)
			ctx.Abort()
			return
		}
		ctx.Set(userKey, user)
		ctx.Next()
	}
}

// OptionalAuth attaches the user when a valid credential is present and
// otherwise lets the request through anonymously.
func OptionalAuth(auth service.Authenticator, cookieName string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := service.ExtractToken(ctx.Request, cookieName)
		if token == "" {
			ctx.Next()
			return
		}
		user, err := auth.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			writeError(ctx, err)
			ctx.Abort()
			return
		}
		ctx.Set(userKey, user)
		ctx.Next()
	}
}

func currentUser(ctx *gin.Context) *domain.User {
	v, ok := ctx.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

func writeError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotRoomMember):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	}

	msg := service.PublicMessage(err)
	if status == http.StatusNotFound && msg == service.InternalErrorMessage {
		msg = err.Error()
	}
	ctx.JSON(status, gin.H{"error": msg})
}
