package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/bankrot-course/internal/models"
)

func TestStorage_DeactivateExpired(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(s)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expired := factory.CreateChatAccess(t, "Просроченный", "late", true, now.Add(-time.Hour))
	boundary := factory.CreateChatAccess(t, "Ровно сейчас", "", true, now)
	alive := factory.CreateChatAccess(t, "Активный", "alive", true, now.Add(time.Hour))
	inactive := factory.CreateChatAccess(t, "Уже выключен", "", false, now.Add(-48*time.Hour))

	got, err := s.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []int64{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []int64{expired, boundary}, ids)
	for _, a := range got {
		assert.False(t, a.IsActive)
	}

	assert.False(t, factory.chatAccessActive(t, expired))
	assert.False(t, factory.chatAccessActive(t, boundary))
	assert.True(t, factory.chatAccessActive(t, alive))
	assert.False(t, factory.chatAccessActive(t, inactive))

	again, err := s.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestStorage_DeactivateExpired_Concurrent(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(s)

	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		factory.CreateChatAccess(t, "Клиент", "", true, now.Add(-time.Minute))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.DeactivateExpired(ctx, now)
			assert.NoError(t, err)
			mu.Lock()
			total += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, total)
}

func TestStorage_FindExpiringBetween(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(s)

	from := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	inWindow := factory.CreateChatAccess(t, "Анна", "anna", true, from.Add(10*time.Hour))
	factory.CreateChatAccess(t, "Без телеграма", "", true, from.Add(10*time.Hour))
	factory.CreateChatAccess(t, "Выключен", "off", false, from.Add(10*time.Hour))
	factory.CreateChatAccess(t, "Позже", "later", true, to)
	atStart := factory.CreateChatAccess(t, "С начала окна", "start", true, from)

	got, err := s.FindExpiringBetween(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, atStart, got[0].ID)
	assert.Equal(t, inWindow, got[1].ID)
	assert.Equal(t, "anna", got[1].TelegramUsername)
}

func TestStorage_CreateAndListChatAccess(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created, err := s.CreateChatAccess(ctx, models.ChatAccess{
		ClientName:  "Мария",
		AccessStart: start,
		AccessEnd:   start.Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Empty(t, created.TelegramUsername)

	NewTestDataFactory(s).CreateChatAccess(t, "Старый", "old", false, start)

	all, err := s.ListChatAccess(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListChatAccess(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)
}
