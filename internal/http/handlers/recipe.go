package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	"github.com/yungbote/tastelab-backend/internal/http/response"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
	"github.com/yungbote/tastelab-backend/internal/services"
)

type RecipeHandler struct {
	log           *logger.Logger
	recipeService services.RecipeService
}

func NewRecipeHandler(log *logger.Logger, recipeService services.RecipeService) *RecipeHandler {
	return &RecipeHandler{
		log:           log.With("handler", "RecipeHandler"),
		recipeService: recipeService,
	}
}

type recipeRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Image       *string             `json:"image"`
	Tags        *[]string           `json:"tags"`
	Ingredients *[]types.Ingredient `json:"ingredients"`
	Steps       *[]types.Step       `json:"steps"`
	IsPublic    *bool               `json:"is_public"`
}

// GET /api/recipes
func (h *RecipeHandler) List(c *gin.Context) {
	recipes, err := h.recipeService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": len(recipes), "recipes": recipes})
}

// GET /api/recipes/:id
func (h *RecipeHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, err := h.recipeService.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recipe": r})
}

// POST /api/recipes
func (h *RecipeHandler) Create(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := services.CreateRecipeInput{}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Image != nil {
		in.Image = *req.Image
	}
	if req.Tags != nil {
		in.Tags = *req.Tags
	}
	if req.Ingredients != nil {
		in.Ingredients = *req.Ingredients
	}
	if req.Steps != nil {
		in.Steps = *req.Steps
	}
	if req.IsPublic != nil {
		in.IsPublic = *req.IsPublic
	}
	r, err := h.recipeService.Create(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"recipe": r})
}

// PUT /api/recipes/:id
func (h *RecipeHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	r, err := h.recipeService.Update(c.Request.Context(), id, services.UpdateRecipeInput{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recipe": r})
}

// DELETE /api/recipes/:id
func (h *RecipeHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.recipeService.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /api/recipes/:id/version
// body: { "message": "..." }
func (h *RecipeHandler) SaveVersion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	r, err := h.recipeService.SaveVersion(c.Request.Context(), id, req.Message)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recipe": r})
}

// GET /api/recipes/:id/versions
func (h *RecipeHandler) ListVersions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := h.recipeService.ListVersions(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, history)
}

// POST /api/recipes/:id/restore/:versionId
func (h *RecipeHandler) RestoreVersion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	versionID, ok := paramID(c, "versionId")
	if !ok {
		return
	}
	r, err := h.recipeService.RestoreVersion(c.Request.Context(), id, versionID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recipe": r})
}

// POST /api/recipes/:id/invite
// body: { "email": "...", "role": "collaborator" | "viewer" }
func (h *RecipeHandler) Invite(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	r, err := h.recipeService.Invite(c.Request.Context(), id, req.Email, req.Role)
	if err != nil {
		h.log.Debug("Invite rejected", "recipe_id", id, "error", err)
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recipe": r})
}

// DELETE /api/recipes/:id/collaborator/:userId
func (h *RecipeHandler) RemoveCollaborator(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	r, err := h.recipeService.RemoveCollaborator(c.Request.Context(), id, userID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.RespondOK(c, gin.H{"recipe": r})
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid %s %q", name, c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}
