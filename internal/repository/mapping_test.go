package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var stamp = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

func TestUserMapping(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{name: "with email", email: "alice@example.com"},
		{name: "without email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &domain.User{
				ID:        uuid.New(),
				Name:      "Alice",
				Email:     tt.email,
				Role:      domain.RoleAdmin,
				CreatedAt: stamp,
				UpdatedAt: stamp.Add(time.Hour),
			}

			row := toModelUser(user)
			if tt.email == "" {
				assert.Nil(t, row.Email, "empty email is stored as NULL")
			} else {
				require.NotNil(t, row.Email)
				assert.Equal(t, tt.email, *row.Email)
			}
			assert.Equal(t, user, toDomainUser(row))

			doc := toUserDoc(user)
			assert.Equal(t, tt.email == "", doc.Email == nil)
			back, err := fromUserDoc(&doc)
			require.NoError(t, err)
			assert.Equal(t, user, back)
		})
	}

	_, err := fromUserDoc(&userDoc{ID: "nope"})
	assert.Error(t, err)
}

func TestRoomMapping(t *testing.T) {
	base := func() *domain.ChatRoom {
		return &domain.ChatRoom{
			ID:        uuid.New(),
			MissionID: uuid.New(),
			Name:      "Recon",
			Members:   []uuid.UUID{uuid.New(), uuid.New()},
			CreatedAt: stamp,
		}
	}

	tests := []struct {
		name    string
		preview *domain.MessagePreview
	}{
		{name: "no preview"},
		{name: "with preview", preview: &domain.MessagePreview{
			MessageID: uuid.New(),
			SenderID:  uuid.New(),
			Body:      "hello",
			SentAt:    stamp.Add(time.Minute),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := base()
			room.LastMessage = tt.preview

			row, err := toModelRoom(room)
			require.NoError(t, err)
			assert.Equal(t, tt.preview == nil, row.LastMessageID == nil)

			back, err := toDomainRoom(row)
			require.NoError(t, err)
			assert.Equal(t, room, back)
		})
	}

	_, err := toDomainRoom(&model.ChatRoom{Members: datatypes.JSON(`{not json`)})
	assert.Error(t, err)
}

func TestMessageMapping(t *testing.T) {
	reader := uuid.New()
	msg := &domain.ChatMessage{
		ID:        uuid.New(),
		MissionID: uuid.New(),
		SenderID:  uuid.New(),
		Body:      "status report",
		CreatedAt: stamp,
		ReadBy:    []uuid.UUID{reader},
		Reactions: []domain.Reaction{{UserID: reader, Emoji: "👍", CreatedAt: stamp.Add(time.Second)}},
	}

	assertSame := func(t *testing.T, got *domain.ChatMessage) {
		t.Helper()
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, msg.MissionID, got.MissionID)
		assert.Equal(t, msg.SenderID, got.SenderID)
		assert.Equal(t, msg.Body, got.Body)
		assert.True(t, msg.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, msg.ReadBy, got.ReadBy)
		require.Len(t, got.Reactions, 1)
		assert.Equal(t, reader, got.Reactions[0].UserID)
		assert.Equal(t, "👍", got.Reactions[0].Emoji)
		assert.True(t, msg.Reactions[0].CreatedAt.Equal(got.Reactions[0].CreatedAt))
	}

	t.Run("postgres row", func(t *testing.T) {
		row, err := toModelMessage(msg)
		require.NoError(t, err)
		back, err := toDomainMessage(row)
		require.NoError(t, err)
		assertSame(t, back)
	})

	t.Run("mongo document", func(t *testing.T) {
		doc := toMessageDoc(msg)
		assert.Equal(t, []string{reader.String()}, doc.ReadBy)
		back, err := fromMessageDoc(&doc)
		require.NoError(t, err)
		assertSame(t, back)
	})

	t.Run("empty sets", func(t *testing.T) {
		row, err := toModelMessage(&domain.ChatMessage{ID: uuid.New(), CreatedAt: stamp})
		require.NoError(t, err)
		back, err := toDomainMessage(row)
		require.NoError(t, err)
		assert.Empty(t, back.ReadBy)
		assert.Empty(t, back.Reactions)
	})

	t.Run("bad reader id", func(t *testing.T) {
		doc := toMessageDoc(msg)
		doc.ReadBy = []string{"nope"}
		_, err := fromMessageDoc(&doc)
		assert.Error(t, err)
	})
}

func TestUnmarshalJSONColumn(t *testing.T) {
	tests := []struct {
		name    string
		raw     datatypes.JSON
		want    []string
		wantErr bool
	}{
		{name: "empty", raw: nil},
		{name: "null", raw: datatypes.JSON("null")},
		{name: "list", raw: datatypes.JSON(`["a","b"]`), want: []string{"a", "b"}},
		{name: "garbage", raw: datatypes.JSON(`[`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := unmarshalJSON(tt.raw, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDayKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{name: "midnight utc", in: time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), want: "2025-03-10"},
		{name: "last second of day", in: time.Date(2025, time.March, 10, 23, 59, 59, 0, time.UTC), want: "2025-03-10"},
		{name: "offset zone", in: time.Date(2025, time.March, 10, 1, 0, 0, 0, time.FixedZone("MSK", 3*3600)), want: "2025-03-09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dayKey(tt.in))
		})
	}
}

func TestToDomainAttendanceNormalisesDate(t *testing.T) {
	sid := uuid.New()
	row := &model.AttendanceRecord{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Date:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
		Status:    string(domain.AttendancePresent),
		SessionID: &sid,
		CreatedAt: stamp,
	}

	rec := toDomainAttendance(row)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, domain.AttendancePresent, rec.Status)
	assert.Equal(t, &sid, rec.SessionID)
}

func TestFromAttendanceDoc(t *testing.T) {
	valid := func() attendanceDoc {
		sid := uuid.NewString()
		return attendanceDoc{
			ID:        uuid.NewString(),
			UserID:    uuid.NewString(),
			Date:      "2025-03-10",
			Status:    string(domain.AttendanceAbsent),
			SessionID: &sid,
			CreatedAt: stamp,
		}
	}
	bad := "nope"

	tests := []struct {
		name    string
		mutate  func(*attendanceDoc)
		wantErr bool
	}{
		{name: "valid", mutate: func(*attendanceDoc) {}},
		{name: "no session", mutate: func(d *attendanceDoc) { d.SessionID = nil }},
		{name: "bad id", mutate: func(d *attendanceDoc) { d.ID = bad }, wantErr: true},
		{name: "bad user id", mutate: func(d *attendanceDoc) { d.UserID = bad }, wantErr: true},
		{name: "bad date", mutate: func(d *attendanceDoc) { d.Date = "10.03.2025" }, wantErr: true},
		{name: "bad session id", mutate: func(d *attendanceDoc) { d.SessionID = &bad }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(&doc)

			rec, err := fromAttendanceDoc(&doc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, doc.ID, rec.ID.String())
			assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), rec.Date)
			assert.Equal(t, domain.AttendanceAbsent, rec.Status)
			assert.Equal(t, doc.SessionID == nil, rec.SessionID == nil)
		})
	}
}

type sqlState string

func (s sqlState) Error() string    { return "sqlstate " + string(s) }
func (s sqlState) SQLState() string { return string(s) }

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "gorm duplicated key", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres 23505", err: fmt.Errorf("insert: %w", sqlState("23505")), want: true},
		{name: "other sqlstate", err: sqlState("23503")},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
