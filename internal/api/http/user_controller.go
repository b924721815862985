package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/api/http/converter"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/service"
)

type TokenIssuer interface {
	IssueToken(user *domain.User) (string, error)
}

type UserController struct {
	users  service.UserInteractor
	tokens TokenIssuer
}

func NewUserController(users service.UserInteractor, tokens TokenIssuer) *UserController {
	return &UserController{users: users, tokens: tokens}
}

// CreateUser registers a user. An anonymous call is only accepted while no
// users exist; the response then carries an access token for the new admin.
func (c *UserController) CreateUser(ctx *gin.Context) {
	type request struct {
		Name  string `json:"name" binding:"required,max=255"`
		Email string `json:"email" binding:"omitempty,email"`
		Role  string `json:"role" binding:"omitempty,oneof=admin member"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	actor := currentUser(ctx)
	user, err := c.users.CreateUser(ctx.Request.Context(), actor, service.CreateUserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  domain.Role(req.Role),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	resp := gin.H{"user": converter.UserToApi(user)}
	if actor == nil && c.tokens != nil {
		token, err := c.tokens.IssueToken(user)
		if err != nil {
			writeError(ctx, err)
			return
		}
		resp["token"] = token
	}

	ctx.JSON(http.StatusCreated, resp)
}

func (c *UserController) Me(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"user": converter.UserToApi(currentUser(ctx))})
}

func (c *UserController) GetUser(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("userID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := c.users.GetUser(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": converter.UserToApi(user)})
}

func (c *UserController) UpdateMe(ctx *gin.Context) {
	type request struct {
		Name  *string `json:"name" binding:"omitempty,min=1,max=255"`
		Email *string `json:"email" binding:"omitempty,email"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user := *currentUser(ctx)
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}

	if err := c.users.UpdateUser(ctx.Request.Context(), &user); err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": converter.UserToApi(&user)})
}
