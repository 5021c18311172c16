package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic_backend/internal/platform/apperr"
)

func TestRepository_Aggregate(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{TenantScoped: true})
	ctx := tenantCtx("t1")
	seedNotes(t, repo, ctx,
		note{Title: "a", Status: "todo", Priority: 1},
		note{Title: "b", Status: "todo", Priority: 3},
		note{Title: "c", Status: "done", Priority: 5},
		note{Title: "d", Status: "doing", Priority: 2},
	)
	seedNotes(t, repo, tenantCtx("t2"), note{Title: "z", Status: "todo", Priority: 100})

	rows, err := repo.Aggregate(ctx, Pipeline{
		Match{Filter: Where("priority", OpGte, 2)},
		Group{By: []string{"status"}, Fields: map[string]Accumulator{
			"count": Count(),
			"total": Sum("priority"),
			"top":   Max("priority"),
		}},
		SortBy{{Field: "total", Desc: true}},
		Limit(2),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "done", rows[0]["status"])
	assert.EqualValues(t, 5, rows[0]["total"])
	assert.Equal(t, "todo", rows[1]["status"])
	assert.EqualValues(t, 1, rows[1]["count"])
	assert.EqualValues(t, 3, rows[1]["top"])
}

func TestRepository_AggregateWithoutGroup(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{})
	ctx := context.Background()
	seedNotes(t, repo, ctx,
		note{Title: "a", Priority: 1},
		note{Title: "b", Priority: 2},
		note{Title: "c", Priority: 3},
	)

	rows, err := repo.Aggregate(ctx, Pipeline{SortBy{{Field: "priority", Desc: true}}, Skip(1), Limit(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["title"])
}

func TestRepository_AggregateRejects(t *testing.T) {
	t.Parallel()

	repo, _ := newNotes(t, Options{TenantScoped: true})
	ctx := tenantCtx("t1")

	tests := []struct {
		name     string
		pipeline Pipeline
		code     apperr.Code
	}{
		{
			name:     "other tenant",
			pipeline: Pipeline{Match{Filter: Eq("tenantId", "t2")}},
			code:     apperr.CodeForbidden,
		},
		{
			name: "match after group",
			pipeline: Pipeline{
				Group{By: []string{"status"}},
				Match{Filter: Eq("status", "todo")},
			},
			code: apperr.CodeInvalid,
		},
		{
			name:     "bad accumulator name",
			pipeline: Pipeline{Group{Fields: map[string]Accumulator{"x; DROP": Count()}}},
			code:     apperr.CodeInvalid,
		},
		{
			name:     "unknown group field",
			pipeline: Pipeline{Group{By: []string{"nope"}}},
			code:     apperr.CodeInvalid,
		},
		{
			name: "sort on non-output column",
			pipeline: Pipeline{
				Group{By: []string{"status"}},
				SortBy{{Field: "priority"}},
			},
			code: apperr.CodeInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Aggregate(ctx, tt.pipeline)
			assert.True(t, apperr.IsCode(err, tt.code), "got %v", err)
		})
	}

	_, err := repo.Aggregate(ctx, Pipeline{Match{Filter: Eq("tenantId", "t1")}})
	assert.NoError(t, err, "matching the caller's own tenant is allowed")
}
