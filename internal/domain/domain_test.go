package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immxrtalbeast/missionops/lib/clock"
)

func TestDay(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		loc  *time.Location
		want time.Time
	}{
		{
			name: "utc midday",
			at:   time.Date(2024, 3, 4, 12, 30, 0, 0, time.UTC),
			loc:  time.UTC,
			want: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "late utc is next day in moscow",
			at:   time.Date(2024, 3, 4, 22, 30, 0, 0, time.UTC),
			loc:  moscow,
			want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "nil location falls back to utc",
			at:   time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC),
			want: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(Day(tt.at, tt.loc)))
		})
	}
}

func TestAttendanceSessionLifecycle(t *testing.T) {
	fake := clock.NewFake(time.Time{})
	start := fake.Now()
	s := NewAttendanceSession("4821", uuid.New(), start, time.Minute)

	assert.True(t, s.IsActive(start.Add(30*time.Second)))
	assert.False(t, s.IsActive(start.Add(time.Minute)))
	assert.Equal(t, time.Minute, s.Window())
	assert.Equal(t, 15*time.Second, s.Remaining(start.Add(45*time.Second)))
	assert.Zero(t, s.Remaining(start.Add(2*time.Minute)))

	fired := false
	s.SetSweep(fake.AfterFunc(time.Minute, func() { fired = true }))

	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel())
	assert.False(t, s.IsActive(start))

	fake.Advance(2 * time.Minute)
	assert.False(t, fired)
}

func TestChatMessageAccretion(t *testing.T) {
	sender := uuid.New()
	reader := uuid.New()
	msg := NewChatMessage(uuid.New(), sender, "hello", time.Now())

	assert.False(t, msg.MarkRead(sender))
	assert.True(t, msg.MarkRead(reader))
	assert.Len(t, msg.ReadBy, 2)

	assert.True(t, msg.AddReaction(Reaction{UserID: reader, Emoji: "👍"}))
	assert.False(t, msg.AddReaction(Reaction{UserID: reader, Emoji: "👍"}))
	assert.True(t, msg.AddReaction(Reaction{UserID: sender, Emoji: "👍"}))
	assert.Len(t, msg.Reactions, 2)
}

func TestMessagePreviewTruncates(t *testing.T) {
	msg := NewChatMessage(uuid.New(), uuid.New(), strings.Repeat("я", 200), time.Now())
	preview := NewMessagePreview(msg)
	assert.Equal(t, previewLength+1, len([]rune(preview.Body)))
	assert.Equal(t, msg.ID, preview.MessageID)
}

func TestNewMissionDeduplicatesMembers(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	m := NewMission("Recon", owner, []uuid.UUID{other, owner, uuid.Nil, other})
	assert.Equal(t, []uuid.UUID{owner, other}, m.Members)

	room := NewChatRoom(m)
	assert.Equal(t, m.ID, room.MissionID)
	assert.True(t, room.HasMember(other))
	assert.False(t, room.HasMember(uuid.New()))
}
