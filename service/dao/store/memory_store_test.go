package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/agentmesh/service/dao"
)

type record struct {
	ID    string
	Owner string
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[string, record](func(r *record) string { return r.ID },
		WithMatcher[string, record](func(r *record, parameters []*dao.Parameter) bool {
			return r.Owner == parameters[0].Value
		}))

	require.NoError(t, s.Save(ctx, &record{ID: "1", Owner: "a"}))
	require.NoError(t, s.Save(ctx, &record{ID: "2", Owner: "b"}))
	assert.ErrorIs(t, s.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, s.Save(ctx, &record{Owner: "c"}), dao.ErrInvalidID)
	assert.Equal(t, 2, s.Len())

	loaded, err := s.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.Owner)

	all, _ := s.List(ctx)
	assert.Len(t, all, 2)
	owned, _ := s.List(ctx, dao.NewParameter("Owner", "b"))
	require.Len(t, owned, 1)
	assert.Equal(t, "2", owned[0].ID)

	require.NoError(t, s.Delete(ctx, "1"))
	loaded, _ = s.Load(ctx, "1")
	assert.Nil(t, loaded)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
