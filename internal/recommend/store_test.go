package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/cinefinder/internal/models"
)

func TestSessionStore_GetAndExpire(t *testing.T) {
	now := fixedNow
	st := NewSessionStore(newEngine(&stubCatalog{}), time.Hour)
	st.now = func() time.Time { return now }

	a := st.Get("a")
	assert.Same(t, a, st.Get("a"))
	assert.NotSame(t, a, st.Get("b"))
	assert.Equal(t, 2, st.Len())

	now = now.Add(45 * time.Minute)
	assert.Same(t, a, st.Get("a"))

	now = now.Add(50 * time.Minute)
	assert.Equal(t, 1, st.Len(), "b idled past the ttl")
	assert.Same(t, a, st.Get("a"))

	now = now.Add(2 * time.Hour)
	assert.NotSame(t, a, st.Get("a"))
}

func TestSessionStore_DefaultTTL(t *testing.T) {
	st := NewSessionStore(newEngine(&stubCatalog{}), 0)
	assert.Equal(t, DefaultSessionTTL, st.ttl)
}

func TestSessionStore_DeleteAndResetAll(t *testing.T) {
	st := NewSessionStore(newEngine(&stubCatalog{pages: pool(12, 3)}), 0)
	ctx := context.Background()

	a, b := st.Get("a"), st.Get("b")
	_, err := a.Recommend(ctx, nil, models.LensSmart)
	require.NoError(t, err)
	_, err = b.Recommend(ctx, nil, models.LensTrending)
	require.NoError(t, err)

	st.ResetAll()
	assert.Empty(t, a.Surfaced(models.LensSmart))
	assert.Empty(t, b.Surfaced(models.LensTrending))

	st.Delete("a")
	assert.Equal(t, 1, st.Len())
}
