package aggregates_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tastelab-backend/internal/data/aggregates"
	"github.com/yungbote/tastelab-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/tastelab-backend/internal/data/repos"
	repotestutil "github.com/yungbote/tastelab-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tastelab-backend/internal/domain"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
)

type recipeFixture struct {
	db       *gorm.DB
	recipes  repos.RecipeRepo
	versions repos.RecipeVersionRepo
	hooks    *testutil.HooksRecorder
	agg      domainagg.RecipeAggregate
}

func newRecipeFixture(t *testing.T, runner aggregates.TxRunner) *recipeFixture {
	t.Helper()
	db := repotestutil.NewDB(t)
	log := repotestutil.Logger(t)
	f := &recipeFixture{
		db:       db,
		recipes:  repos.NewRecipeRepo(db, log),
		versions: repos.NewRecipeVersionRepo(db, log),
		hooks:    &testutil.HooksRecorder{},
	}
	if inj, ok := runner.(*testutil.InjectedTxRunner); ok && inj.DB == nil {
		inj.DB = db
	}
	f.agg = aggregates.NewRecipeAggregate(aggregates.RecipeAggregateDeps{
		Base:     aggregates.BaseDeps{DB: db, Log: log, Runner: runner, Hooks: f.hooks},
		Recipes:  f.recipes,
		Versions: f.versions,
	})
	return f
}

func (f *recipeFixture) load(t *testing.T, id uuid.UUID) (*types.Recipe, []*types.RecipeVersion) {
	t.Helper()
	dbc := dbctx.Context{Ctx: context.Background()}
	r, err := f.recipes.GetByID(dbc, id)
	if err != nil {
		t.Fatalf("load recipe: %v", err)
	}
	history, err := f.versions.ListByRecipe(dbc, id)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	return r, history
}

func TestRecipeAggregateSaveRestoreScenario(t *testing.T) {
	f := newRecipeFixture(t, nil)
	ctx := context.Background()

	owner := repotestutil.SeedUser(t, ctx, f.db, "u1@example.com")
	viewer := repotestutil.SeedUser(t, ctx, f.db, "u2@example.com")
	stranger := repotestutil.SeedUser(t, ctx, f.db, "u3@example.com")
	d := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Pancakes")
	repotestutil.SeedCollaborator(t, ctx, f.db, d.ID, viewer.ID, types.RoleViewer)

	saved, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID, UserID: owner.ID, Message: "draft"})
	if err != nil {
		t.Fatalf("SaveVersion owner: %v", err)
	}
	if saved.VersionNumber != 1 || saved.CurrentVersion != 2 {
		t.Fatalf("SaveVersion: want v1/current 2 got v%d/current %d", saved.VersionNumber, saved.CurrentVersion)
	}
	r, history := f.load(t, d.ID)
	if r.CurrentVersion != 2 || len(history) != 1 || history[0].Message != "draft" || history[0].Title != "Pancakes" {
		t.Fatalf("after save: current=%d history=%+v", r.CurrentVersion, history)
	}

	_, err = f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID, UserID: viewer.ID, Message: "mine"})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("SaveVersion viewer: want forbidden got=%v", err)
	}
	r, history = f.load(t, d.ID)
	if r.CurrentVersion != 2 || len(history) != 1 {
		t.Fatalf("forbidden save mutated state: current=%d history=%d", r.CurrentVersion, len(history))
	}

	if err := f.recipes.UpdateFields(dbctx.Context{Ctx: ctx}, d.ID, map[string]interface{}{"title": "Waffles"}); err != nil {
		t.Fatalf("edit title: %v", err)
	}

	restored, err := f.agg.RestoreVersion(ctx, domainagg.RestoreVersionInput{RecipeID: d.ID, VersionID: history[0].ID, UserID: owner.ID})
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.RestoredFrom != 1 || restored.SnapshotVersionNumber != 2 || restored.CurrentVersion != 3 {
		t.Fatalf("RestoreVersion result: %+v", restored)
	}
	r, history = f.load(t, d.ID)
	if r.CurrentVersion != 3 || r.Title != "Pancakes" {
		t.Fatalf("after restore: current=%d title=%s", r.CurrentVersion, r.Title)
	}
	if len(history) != 2 || history[1].VersionNumber != 2 || history[1].Title != "Waffles" || history[1].Message != "Before restore to v1" {
		t.Fatalf("restore snapshot wrong: %+v", history)
	}

	for _, who := range []uuid.UUID{viewer.ID, stranger.ID} {
		_, err = f.agg.RestoreVersion(ctx, domainagg.RestoreVersionInput{RecipeID: d.ID, VersionID: history[1].ID, UserID: who})
		if !domainagg.IsCode(err, domainagg.CodeForbidden) {
			t.Fatalf("RestoreVersion without edit: want forbidden got=%v", err)
		}
		r, history = f.load(t, d.ID)
		if r.CurrentVersion != 3 || len(history) != 2 || r.Title != "Pancakes" {
			t.Fatalf("forbidden restore mutated state: current=%d history=%d title=%s", r.CurrentVersion, len(history), r.Title)
		}
	}

	var forbidden int
	for _, op := range f.hooks.Writes {
		if op.Outcome == string(domainagg.CodeForbidden) {
			forbidden++
		}
	}
	if forbidden != 3 {
		t.Fatalf("hooks: want=3 forbidden ops got=%d (%+v)", forbidden, f.hooks.Writes)
	}
}

func TestRecipeAggregateSequentialSavesAreDense(t *testing.T) {
	f := newRecipeFixture(t, nil)
	ctx := context.Background()
	owner := repotestutil.SeedUser(t, ctx, f.db, "dense@example.com")
	d := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Focaccia")

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID, UserID: owner.ID}); err != nil {
			t.Fatalf("SaveVersion %d: %v", i, err)
		}
	}
	r, history := f.load(t, d.ID)
	if r.CurrentVersion != n+1 {
		t.Fatalf("current version: want=%d got=%d", n+1, r.CurrentVersion)
	}
	for i, v := range history {
		if v.VersionNumber != i+1 {
			t.Fatalf("history[%d]: want v%d got v%d", i, i+1, v.VersionNumber)
		}
	}
}

func TestRecipeAggregateConcurrentSavesSerialize(t *testing.T) {
	f := newRecipeFixture(t, nil)
	ctx := context.Background()
	owner := repotestutil.SeedUser(t, ctx, f.db, "race@example.com")
	d := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Ramen")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID, UserID: owner.ID})
			if err != nil {
				errs <- err
				return
			}
			numbers <- res.VersionNumber
		}()
	}
	wg.Wait()
	close(errs)
	close(numbers)
	for err := range errs {
		t.Fatalf("concurrent SaveVersion: %v", err)
	}
	seen := map[int]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("duplicate version number %d", num)
		}
		seen[num] = true
	}
	r, history := f.load(t, d.ID)
	if r.CurrentVersion != n+1 || len(history) != n {
		t.Fatalf("after concurrent saves: current=%d history=%d", r.CurrentVersion, len(history))
	}
}

func TestRecipeAggregateNotFound(t *testing.T) {
	f := newRecipeFixture(t, nil)
	ctx := context.Background()
	owner := repotestutil.SeedUser(t, ctx, f.db, "nf@example.com")
	d := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Gnocchi")

	_, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: uuid.New(), UserID: owner.ID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("SaveVersion missing recipe: want not_found got=%v", err)
	}

	_, err = f.agg.RestoreVersion(ctx, domainagg.RestoreVersionInput{RecipeID: d.ID, VersionID: uuid.New(), UserID: owner.ID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("RestoreVersion missing version: want not_found got=%v", err)
	}
	r, history := f.load(t, d.ID)
	if r.CurrentVersion != 1 || len(history) != 0 || r.Title != "Gnocchi" {
		t.Fatalf("not_found restore mutated state: current=%d history=%d title=%s", r.CurrentVersion, len(history), r.Title)
	}

	_, err = f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("SaveVersion without user: want validation got=%v", err)
	}
}

func TestRecipeAggregateRestoreRejectsForeignVersion(t *testing.T) {
	f := newRecipeFixture(t, nil)
	ctx := context.Background()
	owner := repotestutil.SeedUser(t, ctx, f.db, "foreign@example.com")
	a := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Tacos")
	b := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Burritos")

	saved, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: b.ID, UserID: owner.ID})
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	_, err = f.agg.RestoreVersion(ctx, domainagg.RestoreVersionInput{RecipeID: a.ID, VersionID: saved.VersionID, UserID: owner.ID})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("restore foreign version: want not_found got=%v", err)
	}
}

func TestRecipeAggregateRollsBackOnCommitFailure(t *testing.T) {
	runner := &testutil.InjectedTxRunner{FailCommit: errors.New("commit failed")}
	f := newRecipeFixture(t, runner)
	ctx := context.Background()
	owner := repotestutil.SeedUser(t, ctx, f.db, "rollback@example.com")
	d := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Paella")

	_, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID, UserID: owner.ID, At: time.Now()})
	if err == nil {
		t.Fatalf("expected SaveVersion to fail")
	}
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal code got=%v", err)
	}
	r, history := f.load(t, d.ID)
	if r.CurrentVersion != 1 || len(history) != 0 {
		t.Fatalf("partial write survived: current=%d history=%d", r.CurrentVersion, len(history))
	}
	if _, commit, rollback := runner.Counts(); commit != 0 || rollback != 1 {
		t.Fatalf("runner counters: commit=%d rollback=%d", commit, rollback)
	}
}

func TestRecipeAggregateReportsWriteOutcomes(t *testing.T) {
	f := newRecipeFixture(t, nil)
	ctx := context.Background()
	owner := repotestutil.SeedUser(t, ctx, f.db, "hooks@example.com")
	d := repotestutil.SeedRecipe(t, ctx, f.db, owner.ID, "Biryani")

	if _, err := f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: d.ID, UserID: owner.ID}); err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	_, _ = f.agg.SaveVersion(ctx, domainagg.SaveVersionInput{RecipeID: uuid.New(), UserID: owner.ID})

	want := []testutil.WriteEvent{
		{Op: "recipe.save_version", Outcome: "ok"},
		{Op: "recipe.save_version", Outcome: string(domainagg.CodeNotFound)},
	}
	if len(f.hooks.Writes) != len(want) {
		t.Fatalf("writes: want=%d got=%d (%+v)", len(want), len(f.hooks.Writes), f.hooks.Writes)
	}
	for i, w := range want {
		got := f.hooks.Writes[i]
		if got.Op != w.Op || got.Outcome != w.Outcome {
			t.Fatalf("writes[%d]: want=%s/%s got=%s/%s", i, w.Op, w.Outcome, got.Op, got.Outcome)
		}
	}
	if len(f.hooks.Conflicts) != 0 || len(f.hooks.Transients) != 0 {
		t.Fatalf("unexpected conflict/transient signals: %+v %+v", f.hooks.Conflicts, f.hooks.Transients)
	}
}
