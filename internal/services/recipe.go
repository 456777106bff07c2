package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/tastelab-backend/internal/data/aggregates"
	"github.com/yungbote/tastelab-backend/internal/data/repos"
	types "github.com/yungbote/tastelab-backend/internal/domain"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/domain/recipe"
	"github.com/yungbote/tastelab-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
	"github.com/yungbote/tastelab-backend/internal/realtime"
)

// RoomAnnouncer pushes server-originated events to everyone in a recipe's room.
type RoomAnnouncer interface {
	Announce(recipeID uuid.UUID, msg realtime.Message) int
}

type CreateRecipeInput struct {
	Title       string
	Description string
	Image       string
	Tags        []string
	Ingredients []types.Ingredient
	Steps       []types.Step
	IsPublic    bool
}

// UpdateRecipeInput carries only the fields present in the request.
type UpdateRecipeInput struct {
	Title       *string
	Description *string
	Image       *string
	Tags        *[]string
	Ingredients *[]types.Ingredient
	Steps       *[]types.Step
	IsPublic    *bool
}

type VersionHistory struct {
	Versions       []*types.RecipeVersion `json:"versions"`
	CurrentVersion int                    `json:"current_version"`
	OriginalRecipe types.RecipeSnapshot   `json:"original_recipe"`
}

type RecipeService interface {
	List(ctx context.Context) ([]*types.Recipe, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Recipe, error)
	Create(ctx context.Context, in CreateRecipeInput) (*types.Recipe, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateRecipeInput) (*types.Recipe, error)
	Delete(ctx context.Context, id uuid.UUID) error

	SaveVersion(ctx context.Context, id uuid.UUID, message string) (*types.Recipe, error)
	RestoreVersion(ctx context.Context, id, versionID uuid.UUID) (*types.Recipe, error)
	ListVersions(ctx context.Context, id uuid.UUID) (*VersionHistory, error)

	Invite(ctx context.Context, id uuid.UUID, email, role string) (*types.Recipe, error)
	RemoveCollaborator(ctx context.Context, id, userID uuid.UUID) (*types.Recipe, error)

	// RecipeAccess backs the realtime join check.
	RecipeAccess(ctx context.Context, recipeID, userID uuid.UUID) (bool, error)
}

type recipeService struct {
	log       *logger.Logger
	recipes   repos.RecipeRepo
	versions  repos.RecipeVersionRepo
	users     repos.UserRepo
	aggregate domainagg.RecipeAggregate
	announcer RoomAnnouncer
}

func NewRecipeService(
	log *logger.Logger,
	recipes repos.RecipeRepo,
	versions repos.RecipeVersionRepo,
	users repos.UserRepo,
	aggregate domainagg.RecipeAggregate,
	announcer RoomAnnouncer,
) RecipeService {
	return &recipeService{
		log:       log.With("service", "RecipeService"),
		recipes:   recipes,
		versions:  versions,
		users:     users,
		aggregate: aggregate,
		announcer: announcer,
	}
}

// load fetches the recipe and checks that the caller holds need on it.
func (s *recipeService) load(ctx context.Context, op string, id, userID uuid.UUID, need types.Capability) (*types.Recipe, error) {
	if id == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "recipe id is required", nil)
	}
	r, err := s.recipes.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainagg.NewError(domainagg.CodeNotFound, op, "recipe not found", err)
		}
		return nil, aggregates.ClassifyError(op, err)
	}
	if !types.CanAccess(r, userID, need) {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, string(need)+" capability required", nil)
	}
	return r, nil
}

func (s *recipeService) List(ctx context.Context) ([]*types.Recipe, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.recipes.ListAccessible(dbctx.Context{Ctx: ctx}, userID, 0)
	if err != nil {
		return nil, aggregates.ClassifyError("recipe.list", err)
	}
	s.hydrate(ctx, out...)
	return out, nil
}

func (s *recipeService) Get(ctx context.Context, id uuid.UUID) (*types.Recipe, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, "recipe.get", id, userID, types.CapabilityView)
	if err != nil {
		return nil, err
	}
	s.hydrate(ctx, r)
	return r, nil
}

func (s *recipeService) Create(ctx context.Context, in CreateRecipeInput) (*types.Recipe, error) {
	const op = "recipe.create"
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if err := recipe.ValidateContent(title, in.Description); err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	r := &types.Recipe{
		Title:          title,
		Description:    in.Description,
		Image:          strings.TrimSpace(in.Image),
		Tags:           cleanTags(in.Tags),
		Ingredients:    append([]types.Ingredient{}, in.Ingredients...),
		Steps:          append([]types.Step{}, in.Steps...),
		OwnerID:        userID,
		IsPublic:       in.IsPublic,
		CurrentVersion: 1,
	}
	r.Original = types.NewSnapshotJSON(r.Snapshot())
	if _, err := s.recipes.Create(dbctx.Context{Ctx: ctx}, []*types.Recipe{r}); err != nil {
		return nil, aggregates.ClassifyError(op, err)
	}
	r.Collaborators = []types.RecipeCollaborator{}
	s.hydrate(ctx, r)
	s.log.Info("Recipe created", "recipe_id", r.ID, "owner_id", userID)
	return r, nil
}

func (s *recipeService) Update(ctx context.Context, id uuid.UUID, in UpdateRecipeInput) (*types.Recipe, error) {
	const op = "recipe.update"
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, op, id, userID, types.CapabilityEdit)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	title, description := r.Title, r.Description
	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		title = strings.TrimSpace(*in.Title)
		updates["title"] = title
	}
	if in.Description != nil {
		description = *in.Description
		updates["description"] = description
	}
	if err := recipe.ValidateContent(title, description); err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if in.Image != nil {
		updates["image"] = strings.TrimSpace(*in.Image)
	}
	if in.Tags != nil {
		updates["tags"] = cleanTags(*in.Tags)
	}
	if in.Ingredients != nil {
		updates["ingredients"] = datatypes.JSONSlice[types.Ingredient](append([]types.Ingredient{}, (*in.Ingredients)...))
	}
	if in.Steps != nil {
		updates["steps"] = datatypes.JSONSlice[types.Step](append([]types.Step{}, (*in.Steps)...))
	}
	// visibility is the owner's call; collaborators' is_public is ignored
	if in.IsPublic != nil && r.OwnerID == userID {
		updates["is_public"] = *in.IsPublic
	}

	if err := s.recipes.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, aggregates.ClassifyError(op, err)
	}
	return s.reload(ctx, op, id)
}

func (s *recipeService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "recipe.delete"
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, op, id, userID, types.CapabilityOwner); err != nil {
		return err
	}
	if err := s.recipes.Delete(dbctx.Context{Ctx: ctx}, id); err != nil {
		return aggregates.ClassifyError(op, err)
	}
	s.log.Info("Recipe deleted", "recipe_id", id, "owner_id", userID)
	return nil
}

func (s *recipeService) SaveVersion(ctx context.Context, id uuid.UUID, message string) (*types.Recipe, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.aggregate.SaveVersion(ctx, domainagg.SaveVersionInput{
		RecipeID: id,
		UserID:   userID,
		Message:  message,
	})
	if err != nil {
		return nil, err
	}
	r, err := s.reload(ctx, "recipe.save_version", id)
	if err != nil {
		return nil, err
	}

	versionID := res.VersionID
	s.announce(id, realtime.EventVersionSaved, realtime.VersionSavedPayload{
		Version:   res.VersionNumber,
		SavedBy:   s.userName(ctx, userID),
		VersionID: &versionID,
	})
	return r, nil
}

func (s *recipeService) RestoreVersion(ctx context.Context, id, versionID uuid.UUID) (*types.Recipe, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.aggregate.RestoreVersion(ctx, domainagg.RestoreVersionInput{
		RecipeID:  id,
		VersionID: versionID,
		UserID:    userID,
	})
	if err != nil {
		return nil, err
	}
	r, err := s.reload(ctx, "recipe.restore_version", id)
	if err != nil {
		return nil, err
	}

	name := s.userName(ctx, userID)
	snapshotID := res.SnapshotVersionID
	s.announce(id, realtime.EventVersionSaved, realtime.VersionSavedPayload{
		Version:   res.SnapshotVersionNumber,
		SavedBy:   name,
		VersionID: &snapshotID,
	})
	s.announce(id, realtime.EventVersionRestored, realtime.VersionRestoredPayload{
		RestoredFrom:   res.RestoredFrom,
		CurrentVersion: res.CurrentVersion,
		RestoredBy:     name,
	})
	return r, nil
}

func (s *recipeService) ListVersions(ctx context.Context, id uuid.UUID) (*VersionHistory, error) {
	const op = "recipe.list_versions"
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, op, id, userID, types.CapabilityView)
	if err != nil {
		return nil, err
	}
	versions, err := s.versions.ListByRecipe(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, aggregates.ClassifyError(op, err)
	}
	summaries := s.summaries(ctx, versionAuthors(versions))
	for _, v := range versions {
		if u, ok := summaries[v.UpdatedBy]; ok {
			u := u
			v.Author = &u
		}
	}
	return &VersionHistory{
		Versions:       versions,
		CurrentVersion: r.CurrentVersion,
		OriginalRecipe: r.Original.Data(),
	}, nil
}

func (s *recipeService) Invite(ctx context.Context, id uuid.UUID, email, role string) (*types.Recipe, error) {
	const op = "recipe.invite"
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	parsedRole, ok := recipe.ParseRole(role)
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "role must be collaborator or viewer", nil)
	}
	email = repos.NormalizeEmail(email)
	if email == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "email is required", nil)
	}
	r, err := s.load(ctx, op, id, userID, types.CapabilityOwner)
	if err != nil {
		return nil, err
	}
	found, err := s.users.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return nil, aggregates.ClassifyError(op, err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "user not found with this email", nil)
	}
	invitee := found[0]
	if invitee.ID == r.OwnerID {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "owner cannot be invited to their own recipe", nil)
	}
	if _, exists := r.RoleOf(invitee.ID); exists {
		return nil, domainagg.NewError(domainagg.CodeConflict, op, "user is already a collaborator", nil)
	}
	if _, err := s.recipes.AddCollaborator(dbctx.Context{Ctx: ctx}, &types.RecipeCollaborator{
		RecipeID: id,
		UserID:   invitee.ID,
		Role:     parsedRole,
		AddedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, aggregates.ClassifyError(op, err)
	}
	s.log.Info("Collaborator invited", "recipe_id", id, "user_id", invitee.ID, "role", parsedRole)
	return s.reload(ctx, op, id)
}

func (s *recipeService) RemoveCollaborator(ctx context.Context, id, collaboratorID uuid.UUID) (*types.Recipe, error) {
	const op = "recipe.remove_collaborator"
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if collaboratorID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "user id is required", nil)
	}
	if _, err := s.load(ctx, op, id, userID, types.CapabilityOwner); err != nil {
		return nil, err
	}
	removed, err := s.recipes.RemoveCollaborator(dbctx.Context{Ctx: ctx}, id, collaboratorID)
	if err != nil {
		return nil, aggregates.ClassifyError(op, err)
	}
	if removed {
		s.log.Info("Collaborator removed", "recipe_id", id, "user_id", collaboratorID)
	}
	return s.reload(ctx, op, id)
}

func (s *recipeService) RecipeAccess(ctx context.Context, recipeID, userID uuid.UUID) (bool, error) {
	r, err := s.load(ctx, "recipe.access", recipeID, userID, types.CapabilityView)
	if err != nil {
		return false, err
	}
	return types.CanAccess(r, userID, types.CapabilityEdit), nil
}

func (s *recipeService) reload(ctx context.Context, op string, id uuid.UUID) (*types.Recipe, error) {
	r, err := s.recipes.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainagg.NewError(domainagg.CodeNotFound, op, "recipe not found", err)
		}
		return nil, aggregates.ClassifyError(op, err)
	}
	s.hydrate(ctx, r)
	return r, nil
}

func (s *recipeService) announce(recipeID uuid.UUID, event realtime.EventType, payload any) {
	if s.announcer == nil {
		return
	}
	msg, err := realtime.NewMessage(event, payload)
	if err != nil {
		s.log.Warn("Failed to encode announcement", "event", event, "error", err)
		return
	}
	s.announcer.Announce(recipeID, msg)
}

// hydrate attaches owner and collaborator summaries. Lookup failures leave
// the summaries empty.
func (s *recipeService) hydrate(ctx context.Context, rs ...*types.Recipe) {
	ids := make([]uuid.UUID, 0, len(rs))
	for _, r := range rs {
		if r == nil {
			continue
		}
		ids = append(ids, r.OwnerID)
		for _, c := range r.Collaborators {
			ids = append(ids, c.UserID)
		}
	}
	summaries := s.summaries(ctx, ids)
	for _, r := range rs {
		if r == nil {
			continue
		}
		if u, ok := summaries[r.OwnerID]; ok {
			u := u
			r.Owner = &u
		}
		if r.Collaborators == nil {
			r.Collaborators = []types.RecipeCollaborator{}
		}
		for i := range r.Collaborators {
			if u, ok := summaries[r.Collaborators[i].UserID]; ok {
				u := u
				r.Collaborators[i].User = &u
			}
		}
	}
}

func (s *recipeService) summaries(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]types.UserSummary {
	out := make(map[uuid.UUID]types.UserSummary, len(ids))
	if s.users == nil || len(ids) == 0 {
		return out
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	uniq := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	users, err := s.users.GetByIDs(dbctx.Context{Ctx: ctx}, uniq)
	if err != nil {
		s.log.Warn("Failed to load user summaries", "error", err)
		return out
	}
	for _, u := range users {
		if u != nil {
			out[u.ID] = u.Summary()
		}
	}
	return out
}

func (s *recipeService) userName(ctx context.Context, userID uuid.UUID) string {
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID == userID && rd.UserName != "" {
		return rd.UserName
	}
	if u, ok := s.summaries(ctx, []uuid.UUID{userID})[userID]; ok {
		return u.Name
	}
	return ""
}

func versionAuthors(vs []*types.RecipeVersion) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.UpdatedBy)
	}
	return out
}

func cleanTags(tags []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return datatypes.JSONSlice[string](out)
}
