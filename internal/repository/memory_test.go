package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUserRepository()

	alice := domain.NewUser("Alice", "alice@example.com", domain.RoleAdmin)
	require.NoError(t, repo.Create(ctx, alice))

	dup := domain.NewUser("Other", "alice@example.com", domain.RoleMember)
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrUserEmailExists)

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	got.Name = "mutated"
	again, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Name, "returned users must be copies")

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	alice.Email = "alice@corp.example"
	require.NoError(t, repo.Update(ctx, alice))
	require.NoError(t, repo.Create(ctx, domain.NewUser("New", "alice@example.com", domain.RoleMember)))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestInMemoryAttendanceRepositoryUniquePerDay(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAttendanceRepository()
	userID := uuid.New()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	now := day.Add(9 * time.Hour)

	require.NoError(t, repo.Create(ctx, domain.NewPresentRecord(userID, day, uuid.New(), now)))
	assert.ErrorIs(t, repo.Create(ctx, domain.NewAbsentRecord(userID, day, now)), ErrAttendanceExists)

	// a different day is a different key
	require.NoError(t, repo.Create(ctx, domain.NewAbsentRecord(userID, day.AddDate(0, 0, 1), now)))

	rec, err := repo.GetByUserAndDate(ctx, userID, day)
	require.NoError(t, err)
	assert.Equal(t, domain.AttendancePresent, rec.Status)
	require.NotNil(t, rec.SessionID)

	_, err = repo.GetByUserAndDate(ctx, uuid.New(), day)
	assert.ErrorIs(t, err, ErrAttendanceNotFound)

	list, err := repo.ListByDate(ctx, day)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInMemoryAttendanceRepositoryConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAttendanceRepository()
	userID := uuid.New()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Create(ctx, domain.NewPresentRecord(userID, day, uuid.New(), time.Now()))
			switch {
			case err == nil:
				succeeded.Add(1)
			case err == ErrAttendanceExists:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, 49, conflicts.Load())
}

func TestInMemoryChatRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryChatRepository()

	owner := uuid.New()
	mission := domain.NewMission("Recon", owner, nil)
	room := domain.NewChatRoom(mission)
	require.NoError(t, repo.CreateRoom(ctx, room))
	assert.ErrorIs(t, repo.CreateRoom(ctx, domain.NewChatRoom(mission)), ErrChatRoomExists)

	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i, body := range []string{"one", "two", "three"} {
		msg := domain.NewChatMessage(mission.ID, owner, body, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.CreateMessage(ctx, msg))
		require.NoError(t, repo.UpdateRoomPreview(ctx, mission.ID, domain.NewMessagePreview(msg)))
		ids = append(ids, msg.ID)
	}

	history, err := repo.ListMessages(ctx, mission.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Body)
	assert.Equal(t, "three", history[1].Body)

	got, err := repo.GetRoomByMission(ctx, mission.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessage)
	assert.Equal(t, ids[2], got.LastMessage.MessageID)

	// an older preview never replaces a newer one
	stale := domain.MessagePreview{MessageID: ids[0], SentAt: base}
	require.NoError(t, repo.UpdateRoomPreview(ctx, mission.ID, stale))
	got, err = repo.GetRoomByMission(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[2], got.LastMessage.MessageID)

	reader := uuid.New()
	require.NoError(t, repo.MarkRead(ctx, ids[0], reader))
	require.NoError(t, repo.MarkRead(ctx, ids[0], reader))
	msg, err := repo.GetMessage(ctx, ids[0])
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{owner, reader}, msg.ReadBy)

	updated, err := repo.AddReaction(ctx, ids[0], domain.Reaction{UserID: reader, Emoji: "🔥"})
	require.NoError(t, err)
	assert.Len(t, updated.Reactions, 1)

	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.New(), reader), ErrMessageNotFound)
	_, err = repo.GetRoomByMission(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrChatRoomNotFound)
}

func TestInMemoryMissionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryMissionRepository()

	mission := domain.NewMission("Recon", uuid.New(), []uuid.UUID{uuid.New()})
	require.NoError(t, repo.Create(ctx, mission))

	got, err := repo.GetByID(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, mission.Members, got.Members)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrMissionNotFound)
}

func TestRepositoriesHonourCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	assert.ErrorIs(t, store.Users.Create(ctx, domain.NewUser("x", "", domain.RoleMember)), context.Canceled)
	_, err := store.Attendance.ListByDate(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, store.Close(context.Background()))
}
