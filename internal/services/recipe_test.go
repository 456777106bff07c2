package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tastelab-backend/internal/data/aggregates"
	"github.com/yungbote/tastelab-backend/internal/data/repos"
	repotestutil "github.com/yungbote/tastelab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tastelab-backend/internal/domain"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/ctxutil"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/realtime"
)

type announcement struct {
	recipeID uuid.UUID
	msg      realtime.Message
}

type recordingAnnouncer struct {
	mu   sync.Mutex
	sent []announcement
}

func (a *recordingAnnouncer) Announce(recipeID uuid.UUID, msg realtime.Message) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, announcement{recipeID: recipeID, msg: msg})
	return 1
}

func (a *recordingAnnouncer) events() []realtime.EventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]realtime.EventType, 0, len(a.sent))
	for _, s := range a.sent {
		out = append(out, s.msg.Event)
	}
	return out
}

type recipeFixture struct {
	db        *gorm.DB
	svc       RecipeService
	users     repos.UserRepo
	announcer *recordingAnnouncer
}

func newRecipeFixture(t *testing.T) *recipeFixture {
	t.Helper()
	db := repotestutil.NewDB(t)
	log := repotestutil.Logger(t)
	recipes := repos.NewRecipeRepo(db, log)
	versions := repos.NewRecipeVersionRepo(db, log)
	users := repos.NewUserRepo(db, log)
	agg := aggregates.NewRecipeAggregate(aggregates.RecipeAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log},
		Recipes:  recipes,
		Versions: versions,
	})
	announcer := &recordingAnnouncer{}
	return &recipeFixture{
		db:        db,
		svc:       NewRecipeService(log, recipes, versions, users, agg, announcer),
		users:     users,
		announcer: announcer,
	}
}

func (f *recipeFixture) user(t *testing.T, email string) (*types.User, context.Context) {
	t.Helper()
	u := repotestutil.SeedUser(t, context.Background(), f.db, email)
	return u, asUser(u)
}

func asUser(u *types.User) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: u.ID, UserName: u.Name})
}

func strPtr(s string) *string { return &s }

func TestRecipeServiceCreateGetList(t *testing.T) {
	f := newRecipeFixture(t)
	owner, ownerCtx := f.user(t, "owner@example.com")
	_, strangerCtx := f.user(t, "stranger@example.com")

	created, err := f.svc.Create(ownerCtx, CreateRecipeInput{
		Title:       "  Pancakes ",
		Description: "fluffy",
		Tags:        []string{"breakfast", " breakfast", "", "sweet"},
		Ingredients: []types.Ingredient{{Name: "flour", Quantity: "200", Unit: "g"}},
		Steps:       []types.Step{{Order: 1, Instruction: "mix"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Title != "Pancakes" || created.OwnerID != owner.ID || created.CurrentVersion != 1 {
		t.Fatalf("created: got=%+v", created)
	}
	if len(created.Tags) != 2 {
		t.Fatalf("tags: want=2 got=%v", created.Tags)
	}
	if created.Owner == nil || created.Owner.ID != owner.ID {
		t.Fatalf("owner summary missing: %+v", created.Owner)
	}
	if orig := created.Original.Data(); orig.Title != "Pancakes" || len(orig.Ingredients) != 1 {
		t.Fatalf("original snapshot: got=%+v", orig)
	}

	got, err := f.svc.Get(ownerCtx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != created.ID || got.Owner == nil {
		t.Fatalf("Get: got=%+v", got)
	}

	if _, err := f.svc.Get(strangerCtx, created.ID); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("stranger Get: want=%s got=%v", domainagg.CodeForbidden, err)
	}
	if _, err := f.svc.Get(ownerCtx, uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing Get: want=%s got=%v", domainagg.CodeNotFound, err)
	}

	list, err := f.svc.List(ownerCtx)
	if err != nil {
		t.Fatalf("List owner: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List owner: want=1 got=%d", len(list))
	}
	list, err = f.svc.List(strangerCtx)
	if err != nil {
		t.Fatalf("List stranger: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List stranger: want=0 got=%d", len(list))
	}

	if _, err := f.svc.Create(ownerCtx, CreateRecipeInput{Title: "   "}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("blank title: want=%s got=%v", domainagg.CodeValidation, err)
	}
	if _, err := f.svc.List(context.Background()); err == nil {
		t.Fatalf("List without identity should fail")
	}
}

func TestRecipeServiceUpdatePermissions(t *testing.T) {
	f := newRecipeFixture(t)
	_, ownerCtx := f.user(t, "owner@example.com")
	editor, editorCtx := f.user(t, "editor@example.com")
	viewer, viewerCtx := f.user(t, "viewer@example.com")

	r, err := f.svc.Create(ownerCtx, CreateRecipeInput{Title: "Soup"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Invite(ownerCtx, r.ID, editor.Email, "collaborator"); err != nil {
		t.Fatalf("Invite editor: %v", err)
	}
	if _, err := f.svc.Invite(ownerCtx, r.ID, viewer.Email, "viewer"); err != nil {
		t.Fatalf("Invite viewer: %v", err)
	}

	public := true
	updated, err := f.svc.Update(editorCtx, r.ID, UpdateRecipeInput{
		Title:    strPtr("Tomato Soup"),
		IsPublic: &public,
	})
	if err != nil {
		t.Fatalf("Update editor: %v", err)
	}
	if updated.Title != "Tomato Soup" {
		t.Fatalf("title: want=Tomato Soup got=%s", updated.Title)
	}
	if updated.IsPublic {
		t.Fatalf("collaborator must not change visibility")
	}

	updated, err = f.svc.Update(ownerCtx, r.ID, UpdateRecipeInput{Title: strPtr(""), IsPublic: &public})
	if err != nil {
		t.Fatalf("Update owner: %v", err)
	}
	if !updated.IsPublic || updated.Title != "Tomato Soup" {
		t.Fatalf("owner update: public=%v title=%s", updated.IsPublic, updated.Title)
	}

	if _, err := f.svc.Update(viewerCtx, r.ID, UpdateRecipeInput{Title: strPtr("Mine")}); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("viewer update: want=%s got=%v", domainagg.CodeForbidden, err)
	}
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	desc := string(long)
	if _, err := f.svc.Update(ownerCtx, r.ID, UpdateRecipeInput{Description: &desc}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("long description: want=%s got=%v", domainagg.CodeValidation, err)
	}

	if err := f.svc.Delete(editorCtx, r.ID); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("editor delete: want=%s got=%v", domainagg.CodeForbidden, err)
	}
	if err := f.svc.Delete(ownerCtx, r.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := f.svc.Get(ownerCtx, r.ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("after delete: want=%s got=%v", domainagg.CodeNotFound, err)
	}
}

func TestRecipeServiceSaveAndRestoreAnnounce(t *testing.T) {
	f := newRecipeFixture(t)
	owner, ownerCtx := f.user(t, "owner@example.com")
	viewer, viewerCtx := f.user(t, "viewer@example.com")

	r, err := f.svc.Create(ownerCtx, CreateRecipeInput{Title: "Pancakes"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Invite(ownerCtx, r.ID, viewer.Email, "viewer"); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	saved, err := f.svc.SaveVersion(ownerCtx, r.ID, "first draft")
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if saved.CurrentVersion != 2 {
		t.Fatalf("current version: want=2 got=%d", saved.CurrentVersion)
	}
	if _, err := f.svc.SaveVersion(viewerCtx, r.ID, "mine"); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("viewer save: want=%s got=%v", domainagg.CodeForbidden, err)
	}

	if _, err := f.svc.Update(ownerCtx, r.ID, UpdateRecipeInput{Title: strPtr("Waffles")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	history, err := f.svc.ListVersions(viewerCtx, r.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(history.Versions) != 1 || history.CurrentVersion != 2 || history.OriginalRecipe.Title != "Pancakes" {
		t.Fatalf("history: got=%+v", history)
	}
	v1 := history.Versions[0]
	if v1.Author == nil || v1.Author.ID != owner.ID || v1.Message != "first draft" {
		t.Fatalf("version author: got=%+v", v1)
	}

	restored, err := f.svc.RestoreVersion(ownerCtx, r.ID, v1.ID)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.Title != "Pancakes" || restored.CurrentVersion != 3 {
		t.Fatalf("restored: title=%s current=%d", restored.Title, restored.CurrentVersion)
	}
	if _, err := f.svc.RestoreVersion(ownerCtx, r.ID, uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown version: want=%s got=%v", domainagg.CodeNotFound, err)
	}
	if _, err := f.svc.RestoreVersion(viewerCtx, r.ID, v1.ID); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("viewer restore: want=%s got=%v", domainagg.CodeForbidden, err)
	}
	after, err := f.svc.Get(ownerCtx, r.ID)
	if err != nil {
		t.Fatalf("Get after viewer restore: %v", err)
	}
	if after.CurrentVersion != 3 || after.Title != "Pancakes" {
		t.Fatalf("viewer restore mutated recipe: current=%d title=%s", after.CurrentVersion, after.Title)
	}

	want := []realtime.EventType{realtime.EventVersionSaved, realtime.EventVersionSaved, realtime.EventVersionRestored}
	got := f.announcer.events()
	if len(got) != len(want) {
		t.Fatalf("announcements: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("announcement %d: want=%s got=%s", i, want[i], got[i])
		}
	}

	var first realtime.VersionSavedPayload
	if err := json.Unmarshal(f.announcer.sent[0].msg.Data, &first); err != nil {
		t.Fatalf("decode versionSaved: %v", err)
	}
	if first.Version != 1 || first.SavedBy != owner.Name || f.announcer.sent[0].recipeID != r.ID {
		t.Fatalf("versionSaved payload: got=%+v", first)
	}
	var rest realtime.VersionRestoredPayload
	if err := json.Unmarshal(f.announcer.sent[2].msg.Data, &rest); err != nil {
		t.Fatalf("decode versionRestored: %v", err)
	}
	if rest.RestoredFrom != 1 || rest.CurrentVersion != 3 || rest.RestoredBy != owner.Name {
		t.Fatalf("versionRestored payload: got=%+v", rest)
	}
}

func TestRecipeServiceCollaborators(t *testing.T) {
	f := newRecipeFixture(t)
	owner, ownerCtx := f.user(t, "owner@example.com")
	friend, friendCtx := f.user(t, "friend@example.com")

	r, err := f.svc.Create(ownerCtx, CreateRecipeInput{Title: "Bread"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Invite(ownerCtx, r.ID, "ghost@example.com", ""); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown invitee: want=%s got=%v", domainagg.CodeNotFound, err)
	}
	if _, err := f.svc.Invite(ownerCtx, r.ID, owner.Email, ""); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("self invite: want=%s got=%v", domainagg.CodeValidation, err)
	}
	if _, err := f.svc.Invite(ownerCtx, r.ID, friend.Email, "admin"); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("bad role: want=%s got=%v", domainagg.CodeValidation, err)
	}

	invited, err := f.svc.Invite(ownerCtx, r.ID, "  FRIEND@example.com", "")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if len(invited.Collaborators) != 1 || invited.Collaborators[0].Role != types.RoleCollaborator {
		t.Fatalf("collaborators: got=%+v", invited.Collaborators)
	}
	if c := invited.Collaborators[0]; c.User == nil || c.User.ID != friend.ID {
		t.Fatalf("collaborator summary: got=%+v", c.User)
	}
	if _, err := f.svc.Invite(ownerCtx, r.ID, friend.Email, "viewer"); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("duplicate invite: want=%s got=%v", domainagg.CodeConflict, err)
	}
	if _, err := f.svc.Invite(friendCtx, r.ID, owner.Email, ""); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("collaborator invite: want=%s got=%v", domainagg.CodeForbidden, err)
	}

	canEdit, err := f.svc.RecipeAccess(context.Background(), r.ID, friend.ID)
	if err != nil || !canEdit {
		t.Fatalf("RecipeAccess friend: canEdit=%v err=%v", canEdit, err)
	}

	removed, err := f.svc.RemoveCollaborator(ownerCtx, r.ID, friend.ID)
	if err != nil {
		t.Fatalf("RemoveCollaborator: %v", err)
	}
	if len(removed.Collaborators) != 0 {
		t.Fatalf("after remove: got=%+v", removed.Collaborators)
	}
	if _, err := f.svc.RemoveCollaborator(ownerCtx, r.ID, friend.ID); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}

	if _, err := f.svc.RecipeAccess(context.Background(), r.ID, friend.ID); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("RecipeAccess removed: want=%s got=%v", domainagg.CodeForbidden, err)
	}
	if _, err := f.svc.RecipeAccess(context.Background(), uuid.New(), owner.ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("RecipeAccess missing: want=%s got=%v", domainagg.CodeNotFound, err)
	}
}

func TestRecipeServicePublicRecipeIsViewOnly(t *testing.T) {
	f := newRecipeFixture(t)
	_, ownerCtx := f.user(t, "owner@example.com")
	stranger, strangerCtx := f.user(t, "stranger@example.com")

	r, err := f.svc.Create(ownerCtx, CreateRecipeInput{Title: "Salad", IsPublic: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Get(strangerCtx, r.ID); err != nil {
		t.Fatalf("public Get: %v", err)
	}
	canEdit, err := f.svc.RecipeAccess(context.Background(), r.ID, stranger.ID)
	if err != nil || canEdit {
		t.Fatalf("public RecipeAccess: canEdit=%v err=%v", canEdit, err)
	}
	if _, err := f.svc.Update(strangerCtx, r.ID, UpdateRecipeInput{Title: strPtr("Mine")}); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("public Update: want=%s got=%v", domainagg.CodeForbidden, err)
	}
}

func TestUserServiceGetMe(t *testing.T) {
	db := repotestutil.NewDB(t)
	log := repotestutil.Logger(t)
	svc := NewUserService(log, repos.NewUserRepo(db, log))
	u := repotestutil.SeedUser(t, context.Background(), db, "me@example.com")

	got, err := svc.GetMe(dbctx.Context{Ctx: asUser(u)})
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if got.ID != u.ID || got.Email != u.Email {
		t.Fatalf("GetMe: want=%s got=%s", u.ID, got.ID)
	}

	ghost := &types.User{ID: uuid.New(), Name: "ghost"}
	if _, err := svc.GetMe(dbctx.Context{Ctx: asUser(ghost)}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("ghost GetMe: want=%s got=%v", domainagg.CodeNotFound, err)
	}
	if _, err := svc.GetMe(dbctx.Context{Ctx: context.Background()}); err == nil {
		t.Fatalf("GetMe without identity should fail")
	}
}
