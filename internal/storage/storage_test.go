package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/chronobooth/internal/booth"
	"github.com/lehigh-university-libraries/chronobooth/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopService struct{}

func (nopService) Analyze(context.Context, media.Image) (string, error) { return "", nil }

func (nopService) Transform(context.Context, media.Image, string) (media.Image, error) {
	return media.Image{}, nil
}

func newStore() *SessionStore {
	return New("test", func(id string) *booth.Booth { return booth.New(id, nopService{}) })
}

func TestCreateUsesUUID(t *testing.T) {
	s := newStore()
	b := s.Create()

	_, err := uuid.Parse(b.ID())
	require.NoError(t, err)

	got, ok := s.Get(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 1, s.Len())
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	s := newStore()
	first := s.GetOrCreate("tg:42")
	second := s.GetOrCreate("tg:42")
	assert.Same(t, first, second)
	assert.Equal(t, "tg:42", first.ID())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	s := newStore()

	var wg sync.WaitGroup
	got := make([]*booth.Booth, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for _, b := range got {
		assert.Same(t, got[0], b)
	}
	assert.Equal(t, 1, s.Len())
}

func TestDeleteAndGetAll(t *testing.T) {
	s := newStore()
	a := s.Create()
	s.Create()

	all := s.GetAll()
	assert.Len(t, all, 2)

	s.Delete(a.ID())
	_, ok := s.Get(a.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.Len(t, all, 2, "GetAll returns a copy")
}
