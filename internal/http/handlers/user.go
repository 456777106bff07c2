package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/tastelab-backend/internal/http/response"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GET /api/me
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}
