package registry

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Put(KindItem, "item-1", "value"))

	v, err := r.Get(KindItem, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	_, err = r.Get(KindItem, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = r.Get(KindArtifact, "item-1")
	assert.True(t, errors.Is(err, ErrNotFound), "kinds are separate stores")
}

func TestPutEmptyID(t *testing.T) {
	r := New()
	err := r.Put(KindArtifact, "", struct{}{})
	assert.True(t, errors.Is(err, ErrInvalidID))
}

func TestClear(t *testing.T) {
	r := New()
	require.NoError(t, r.Put(KindItem, "a", 1))
	require.NoError(t, r.Put(KindItem, "b", 2))
	require.NoError(t, r.Put(KindArtifact, "p", 3))
	require.Equal(t, 2, r.Count(KindItem))

	r.Clear()

	assert.Equal(t, 0, r.Count(KindItem))
	assert.Equal(t, 0, r.Count(KindArtifact))
	for _, id := range []string{"a", "b"} {
		_, err := r.Get(KindItem, id)
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	_, err := r.Get(KindArtifact, "p")
	assert.True(t, errors.Is(err, ErrNotFound))
}
