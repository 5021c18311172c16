package repository

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"mosaic_backend/internal/platform/apperr"
	"mosaic_backend/internal/platform/tenant"
)

type note struct {
	Model
	Tenancy
	Sequence
	SoftDeletable
	Title    string `json:"title"`
	Status   string `gorm:"size:16" json:"status"`
	Priority int    `json:"priority"`
}

type plain struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

// setupTestDB prepares an in-memory SQLite database with one connection so
// every query sees the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to initialize test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&Counter{}))
	return db
}

func newNotes(t *testing.T, opts Options) (*Repository[note], *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register("notes", db, &note{}))
	require.NoError(t, reg.AutoMigrate(context.Background()))

	if opts.AutoIncrement && opts.Sequencer == nil {
		opts.Sequencer = NewDBSequencer(db)
	}
	repo, err := New[note](reg, "notes", opts)
	require.NoError(t, err)
	return repo, db
}

func tenantCtx(id string) context.Context {
	return tenant.WithTenant(context.Background(), id)
}

func seedNotes(t *testing.T, repo *Repository[note], ctx context.Context, items ...note) {
	t.Helper()
	for i := range items {
		require.NoError(t, repo.Create(ctx, &items[i]))
	}
}

func TestNew_FailsFast(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register("notes", db, &note{}))
	require.NoError(t, reg.Register("plains", db, &plain{}))

	tests := []struct {
		name       string
		reg        *Registry
		collection string
		opts       Options
		build      func(*Registry, string, Options) error
		wantErr    error
	}{
		{
			name:       "nil registry",
			collection: "notes",
			build:      func(r *Registry, c string, o Options) error { _, err := New[note](r, c, o); return err },
			wantErr:    ErrNoBinding,
		},
		{
			name:       "unregistered collection",
			reg:        reg,
			collection: "missing",
			build:      func(r *Registry, c string, o Options) error { _, err := New[note](r, c, o); return err },
			wantErr:    ErrNoBinding,
		},
		{
			name:       "model mismatch",
			reg:        reg,
			collection: "plains",
			build:      func(r *Registry, c string, o Options) error { _, err := New[note](r, c, o); return err },
			wantErr:    ErrModelMismatch,
		},
		{
			name:       "tenant scope without tenancy",
			reg:        reg,
			collection: "plains",
			opts:       Options{TenantScoped: true},
			build:      func(r *Registry, c string, o Options) error { _, err := New[plain](r, c, o); return err },
			wantErr:    ErrNotTenantScoped,
		},
		{
			name:       "auto increment without sequencer",
			reg:        reg,
			collection: "notes",
			opts:       Options{AutoIncrement: true},
			build:      func(r *Registry, c string, o Options) error { _, err := New[note](r, c, o); return err },
			wantErr:    ErrNotSequenced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(tt.reg, tt.collection, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_RegisterTwice(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register("notes", db, &note{}))

	assert.Error(t, reg.Register("notes", db, &note{}))
	assert.Error(t, reg.Register("", db, &note{}))
	assert.Error(t, reg.Register("other", nil, &note{}))
	assert.Equal(t, []string{"notes"}, reg.Names())
}

func TestRepository_CreateStampsTenant(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{Entity: "note", TenantScoped: true})
	ctx := tenantCtx("t1")

	n := &note{Title: "a", Tenancy: Tenancy{TenantID: "forged"}}
	require.NoError(t, repo.Create(ctx, n))
	assert.NotZero(t, n.ID)
	assert.Equal(t, "t1", n.TenantID, "client-supplied tenant must be overwritten")

	found, err := repo.FindByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", found.Title)

	_, err = repo.FindByID(tenantCtx("t2"), n.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound), "other tenants must not see the record")
}

func TestRepository_CreateAssignsSequence(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{AutoIncrement: true})
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 3; i++ {
		n := &note{Title: "n"}
		require.NoError(t, repo.Create(ctx, n))
		seqs = append(seqs, n.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	batch := []*note{{Title: "x"}, {Title: "y"}}
	res, err := repo.BulkCreate(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted)
	assert.Equal(t, int64(4), batch[0].Seq)
	assert.Equal(t, int64(5), batch[1].Seq)
}

func TestRepository_FindAndFilters(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{TenantScoped: true})
	ctx := tenantCtx("t1")
	seedNotes(t, repo, ctx,
		note{Title: "Write report", Status: "todo", Priority: 3},
		note{Title: "Review 100% coverage", Status: "doing", Priority: 1},
		note{Title: "Ship", Status: "done", Priority: 5},
	)
	seedNotes(t, repo, tenantCtx("t2"), note{Title: "Foreign", Status: "todo", Priority: 9})

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all in tenant", Filter{}, []string{"Ship", "Review 100% coverage", "Write report"}},
		{"eq", Eq("status", "todo"), []string{"Write report"}},
		{"gte", Where("priority", OpGte, 3), []string{"Ship", "Write report"}},
		{"in", Where("status", OpIn, []any{"todo", "done"}), []string{"Ship", "Write report"}},
		{"nin", Where("status", OpNin, []any{"todo", "done"}), []string{"Review 100% coverage"}},
		{"like escapes wildcards", Where("title", OpLike, "100%"), []string{"Review 100% coverage"}},
		{"search", Filter{Search: &Search{Term: "REPORT", Fields: []string{"title", "status"}}}, []string{"Write report"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, Query{Filter: tt.filter})
			require.NoError(t, err)
			titles := make([]string, 0, len(got))
			for _, n := range got {
				titles = append(titles, n.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestRepository_FindUnknownField(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{})
	_, err := repo.Find(context.Background(), Query{Filter: Eq("nope", 1)})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))
}

func TestRepository_FindProjectionAndSort(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{})
	ctx := context.Background()
	seedNotes(t, repo, ctx,
		note{Title: "b", Status: "todo", Priority: 2},
		note{Title: "a", Status: "todo", Priority: 2},
		note{Title: "c", Status: "done", Priority: 7},
	)

	got, err := repo.Find(ctx, Query{
		Sort:   ParseSort("-priority,title"),
		Select: []string{"title"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Title)
	assert.Equal(t, "a", got[1].Title)
	assert.Equal(t, "b", got[2].Title)
	assert.NotZero(t, got[0].ID, "primary key is always selected")
	assert.Empty(t, got[0].Status, "unselected columns stay zero")
}

func TestRepository_UpdateByIDIgnoresProtectedFields(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{TenantScoped: true, AutoIncrement: true})
	ctx := tenantCtx("t1")
	n := &note{Title: "old"}
	require.NoError(t, repo.Create(ctx, n))

	updated, err := repo.UpdateByID(ctx, n.ID, map[string]any{
		"title":    "new",
		"tenantId": "t2",
		"seq":      99,
		"id":       1234,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "t1", updated.TenantID)
	assert.Equal(t, n.Seq, updated.Seq)
	assert.Equal(t, n.ID, updated.ID)

	_, err = repo.UpdateByID(ctx, n.ID, map[string]any{"tenantId": "t2"})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid), "a patch of only protected fields is rejected")

	_, err = repo.UpdateByID(tenantCtx("t2"), n.ID, map[string]any{"title": "x"})
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestRepository_UpdateOneAndMany(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{})
	ctx := context.Background()
	seedNotes(t, repo, ctx,
		note{Title: "a", Status: "todo"},
		note{Title: "b", Status: "todo"},
		note{Title: "c", Status: "done"},
	)

	res, err := repo.UpdateOne(ctx, Eq("status", "todo"), map[string]any{"status": "doing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)

	res, err = repo.UpdateMany(ctx, Eq("status", "todo"), map[string]any{"priority": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)

	n, err := repo.Count(ctx, Eq("status", "doing"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err = repo.UpdateOne(ctx, Eq("status", "missing"), map[string]any{"status": "x"})
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
}

func TestRepository_Deletes(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{TenantScoped: true})
	ctx := tenantCtx("t1")
	seedNotes(t, repo, ctx,
		note{Title: "a", Status: "todo"},
		note{Title: "b", Status: "todo"},
		note{Title: "c", Status: "done"},
	)
	seedNotes(t, repo, tenantCtx("t2"), note{Title: "z", Status: "todo"})

	res, err := repo.DeleteOne(ctx, Eq("status", "todo"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted)

	res, err = repo.DeleteMany(ctx, Eq("status", "todo"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted, "other tenant's record is untouched")

	_, err = repo.DeleteByID(ctx, 9999)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	left, err := repo.Count(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), left)

	_, err = repo.DeleteMany(context.Background(), Filter{})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid), "unfiltered unscoped delete is refused")
}

func TestRepository_ExistsAndDistinct(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{TenantScoped: true})
	ctx := tenantCtx("t1")
	seedNotes(t, repo, ctx,
		note{Title: "a", Status: "todo"},
		note{Title: "b", Status: "done"},
		note{Title: "c", Status: "todo"},
	)
	seedNotes(t, repo, tenantCtx("t2"), note{Title: "z", Status: "doing"})

	ok, err := repo.Exists(ctx, Eq("title", "b"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, Eq("title", "z"))
	require.NoError(t, err)
	assert.False(t, ok)

	values, err := repo.Distinct(ctx, "status", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []any{"done", "todo"}, values)
}

func TestRepository_Paginate(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{})
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		seedNotes(t, repo, ctx, note{Title: "n", Priority: i})
	}

	page, err := repo.Paginate(ctx, Query{Page: 2, Limit: 3, Sort: ParseSort("priority")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 3, *page.NextPage)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Items[0].Priority)

	last, err := repo.Paginate(ctx, Query{Page: 3, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
	assert.False(t, last.HasNext)
	assert.Nil(t, last.NextPage)

	capped, err := repo.Paginate(ctx, Query{Limit: 10000})
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, capped.Limit)

	_, err = repo.Paginate(ctx, Query{Page: -1})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))
}

func TestRepository_Lookup(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{SearchFields: []string{"title"}})
	ctx := context.Background()
	seedNotes(t, repo, ctx,
		note{Title: "alpha report", Status: "todo", Priority: 1},
		note{Title: "beta report", Status: "doing", Priority: 4},
		note{Title: "gamma", Status: "todo", Priority: 5},
	)

	params := url.Values{
		"q":            {"report"},
		"priority.gte": {"2"},
		"sort":         {"-priority"},
		"limit":        {"10"},
	}
	page, err := repo.Lookup(ctx, params)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "beta report", page.Items[0].Title)

	page, err = repo.Lookup(ctx, url.Values{"status.in": {"todo,doing"}, "priority.lt": {"5"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	_, err = repo.Lookup(ctx, url.Values{"priority": {"high"}})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid), "values are coerced to the column type")

	_, err = repo.Lookup(ctx, url.Values{"priority.between": {"1"}})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalid))
}

func TestRepository_DuplicateKeyIsConflict(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register("plains", db, &plain{}))
	require.NoError(t, reg.AutoMigrate(context.Background()))
	repo, err := New[plain](reg, "plains", Options{Entity: "plain"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &plain{Code: "x"}))
	err = repo.Create(ctx, &plain{Code: "x"})
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}
