package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
)

type InMemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*domain.User
	emails map[string]uuid.UUID
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:  make(map[uuid.UUID]*domain.User),
		emails: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != "" {
		if _, ok := r.emails[user.Email]; ok {
			return ErrUserEmailExists
		}
		r.emails[user.Email] = user.ID
	}

	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	u := *user
	return &u, nil
}

func (r *InMemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if user.Email != "" {
		if owner, ok := r.emails[user.Email]; ok && owner != user.ID {
			return ErrUserEmailExists
		}
	}

	if prev.Email != "" && prev.Email != user.Email {
		delete(r.emails, prev.Email)
	}
	u := *user
	r.users[user.ID] = &u
	if user.Email != "" {
		r.emails[user.Email] = user.ID
	}
	return nil
}

func (r *InMemoryUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		u := *user
		result = append(result, &u)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemoryUserRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

type InMemoryMissionRepository struct {
	mu       sync.RWMutex
	missions map[uuid.UUID]*domain.Mission
}

func NewInMemoryMissionRepository() *InMemoryMissionRepository {
	return &InMemoryMissionRepository{missions: make(map[uuid.UUID]*domain.Mission)}
}

func (r *InMemoryMissionRepository) Create(ctx context.Context, mission *domain.Mission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m := *mission
	m.Members = slices.Clone(mission.Members)
	r.missions[mission.ID] = &m
	return nil
}

func (r *InMemoryMissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	mission, ok := r.missions[id]
	if !ok {
		return nil, ErrMissionNotFound
	}
	m := *mission
	m.Members = slices.Clone(mission.Members)
	return &m, nil
}

type InMemoryChatRepository struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]*domain.ChatRoom // by mission id
	messages map[uuid.UUID]*domain.ChatMessage
	timeline map[uuid.UUID][]uuid.UUID // mission id -> message ids in insert order
}

func NewInMemoryChatRepository() *InMemoryChatRepository {
	return &InMemoryChatRepository{
		rooms:    make(map[uuid.UUID]*domain.ChatRoom),
		messages: make(map[uuid.UUID]*domain.ChatMessage),
		timeline: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *InMemoryChatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.MissionID]; ok {
		return ErrChatRoomExists
	}
	r.rooms[room.MissionID] = cloneRoom(room)
	return nil
}

func (r *InMemoryChatRepository) GetRoomByMission(ctx context.Context, missionID uuid.UUID) (*domain.ChatRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[missionID]
	if !ok {
		return nil, ErrChatRoomNotFound
	}
	return cloneRoom(room), nil
}

func (r *InMemoryChatRepository) UpdateRoomPreview(ctx context.Context, missionID uuid.UUID, preview domain.MessagePreview) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[missionID]
	if !ok {
		return ErrChatRoomNotFound
	}
	if room.LastMessage != nil && room.LastMessage.SentAt.After(preview.SentAt) {
		return nil
	}
	p := preview
	room.LastMessage = &p
	return nil
}

func (r *InMemoryChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[msg.ID] = cloneMessage(msg)
	r.timeline[msg.MissionID] = append(r.timeline[msg.MissionID], msg.ID)
	return nil
}

func (r *InMemoryChatRepository) GetMessage(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return cloneMessage(msg), nil
}

func (r *InMemoryChatRepository) ListMessages(ctx context.Context, missionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.timeline[missionID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	result := make([]*domain.ChatMessage, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneMessage(r.messages[id]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *InMemoryChatRepository) MarkRead(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	msg.MarkRead(userID)
	return nil
}

func (r *InMemoryChatRepository) AddReaction(ctx context.Context, messageID uuid.UUID, reaction domain.Reaction) (*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	msg.AddReaction(reaction)
	return cloneMessage(msg), nil
}

type attendanceKey struct {
	userID uuid.UUID
	date   string
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

type InMemoryAttendanceRepository struct {
	mu      sync.RWMutex
	records map[attendanceKey]*domain.AttendanceRecord
}

func NewInMemoryAttendanceRepository() *InMemoryAttendanceRepository {
	return &InMemoryAttendanceRepository{
		records: make(map[attendanceKey]*domain.AttendanceRecord),
	}
}

func (r *InMemoryAttendanceRepository) Create(ctx context.Context, record *domain.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := attendanceKey{userID: record.UserID, date: dayKey(record.Date)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[key]; ok {
		return ErrAttendanceExists
	}
	rec := *record
	r.records[key] = &rec
	return nil
}

func (r *InMemoryAttendanceRepository) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[attendanceKey{userID: userID, date: dayKey(date)}]
	if !ok {
		return nil, ErrAttendanceNotFound
	}
	out := *rec
	return &out, nil
}

func (r *InMemoryAttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	day := dayKey(date)

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.AttendanceRecord, 0)
	for key, rec := range r.records {
		if key.date != day {
			continue
		}
		out := *rec
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func cloneRoom(room *domain.ChatRoom) *domain.ChatRoom {
	out := *room
	out.Members = slices.Clone(room.Members)
	if room.LastMessage != nil {
		p := *room.LastMessage
		out.LastMessage = &p
	}
	return &out
}

func cloneMessage(msg *domain.ChatMessage) *domain.ChatMessage {
	out := *msg
	out.ReadBy = slices.Clone(msg.ReadBy)
	out.Reactions = slices.Clone(msg.Reactions)
	return &out
}
