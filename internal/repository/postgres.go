package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository/model"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// OpenPostgres connects through gorm with error translation enabled so that
// unique violations surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

func NewPostgresStore(db *gorm.DB) *Store {
	return &Store{
		Users:      NewPostgresUserRepository(db),
		Missions:   NewPostgresMissionRepository(db),
		Chat:       NewPostgresChatRepository(db),
		Attendance: NewPostgresAttendanceRepository(db),
		close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

type sqlStateErr interface {
	SQLState() string
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr sqlStateErr
	return errors.As(err, &pgErr) && pgErr.SQLState() == pgUniqueViolation
}

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelUser(user)).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return toDomainUser(&user), nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	userModel := toModelUser(user)

	updateData := map[string]any{
		"name":       userModel.Name,
		"role":       userModel.Role,
		"updated_at": userModel.UpdatedAt,
	}

	if userModel.Email == nil {
		updateData["email"] = gorm.Expr("NULL")
	} else {
		updateData["email"] = userModel.Email
	}

	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userModel.ID).Updates(updateData)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrUserEmailExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var users []model.User
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.User, 0, len(users))
	for i := range users {
		result = append(result, toDomainUser(&users[i]))
	}
	return result, nil
}

func (r *PostgresUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}

type PostgresMissionRepository struct {
	db *gorm.DB
}

func NewPostgresMissionRepository(db *gorm.DB) *PostgresMissionRepository {
	return &PostgresMissionRepository{db: db}
}

func (r *PostgresMissionRepository) Create(ctx context.Context, mission *domain.Mission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	members, err := marshalJSON(mission.Members)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Create(&model.Mission{
		ID:        mission.ID,
		Title:     mission.Title,
		CreatedBy: mission.CreatedBy,
		Members:   members,
		CreatedAt: mission.CreatedAt.UTC(),
	}).Error
}

func (r *PostgresMissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m model.Mission
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMissionNotFound
		}
		return nil, err
	}

	var members []uuid.UUID
	if err := unmarshalJSON(m.Members, &members); err != nil {
		return nil, err
	}

	return &domain.Mission{
		ID:        m.ID,
		Title:     m.Title,
		CreatedBy: m.CreatedBy,
		Members:   members,
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewPostgresChatRepository(db *gorm.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	roomModel, err := toModelRoom(room)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(roomModel).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrChatRoomExists
		}
		return err
	}
	return nil
}

func (r *PostgresChatRepository) GetRoomByMission(ctx context.Context, missionID uuid.UUID) (*domain.ChatRoom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.ChatRoom
	if err := r.db.WithContext(ctx).First(&room, "mission_id = ?", missionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room)
}

func (r *PostgresChatRepository) UpdateRoomPreview(ctx context.Context, missionID uuid.UUID, preview domain.MessagePreview) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sentAt := preview.SentAt.UTC()
	res := r.db.WithContext(ctx).
		Model(&model.ChatRoom{}).
		Where("mission_id = ?", missionID).
		Where("last_message_at IS NULL OR last_message_at <= ?", sentAt).
		Updates(map[string]any{
			"last_message_id":     preview.MessageID,
			"last_message_sender": preview.SenderID,
			"last_message_body":   preview.Body,
			"last_message_at":     sentAt,
		})
	return res.Error
}

func (r *PostgresChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msgModel, err := toModelMessage(msg)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(msgModel).Error
}

func (r *PostgresChatRepository) GetMessage(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msg model.ChatMessage
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return toDomainMessage(&msg)
}

func (r *PostgresChatRepository) ListMessages(ctx context.Context, missionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Where("mission_id = ?", missionID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []model.ChatMessage
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.ChatMessage, len(rows))
	for i := range rows {
		msg, err := toDomainMessage(&rows[i])
		if err != nil {
			return nil, err
		}
		result[len(rows)-1-i] = msg
	}
	return result, nil
}

func (r *PostgresChatRepository) MarkRead(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) error {
	_, err := r.mutateMessage(ctx, messageID, func(msg *domain.ChatMessage) bool {
		return msg.MarkRead(userID)
	})
	return err
}

func (r *PostgresChatRepository) AddReaction(ctx context.Context, messageID uuid.UUID, reaction domain.Reaction) (*domain.ChatMessage, error) {
	return r.mutateMessage(ctx, messageID, func(msg *domain.ChatMessage) bool {
		return msg.AddReaction(reaction)
	})
}

// mutateMessage applies fn to the row under a row lock so concurrent
// accretions do not overwrite each other.
func (r *PostgresChatRepository) mutateMessage(ctx context.Context, id uuid.UUID, fn func(*domain.ChatMessage) bool) (*domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result *domain.ChatMessage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.ChatMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}

		msg, err := toDomainMessage(&row)
		if err != nil {
			return err
		}
		result = msg

		if !fn(msg) {
			return nil
		}

		readBy, err := marshalJSON(msg.ReadBy)
		if err != nil {
			return err
		}
		reactions, err := marshalJSON(msg.Reactions)
		if err != nil {
			return err
		}

		return tx.Model(&model.ChatMessage{}).Where("id = ?", id).Updates(map[string]any{
			"read_by":   readBy,
			"reactions": reactions,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type PostgresAttendanceRepository struct {
	db *gorm.DB
}

func NewPostgresAttendanceRepository(db *gorm.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

func (r *PostgresAttendanceRepository) Create(ctx context.Context, record *domain.AttendanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record == nil {
		return errors.New("attendance record is nil")
	}

	err := r.db.WithContext(ctx).Create(&model.AttendanceRecord{
		ID:        record.ID,
		UserID:    record.UserID,
		Date:      record.Date.UTC(),
		Status:    string(record.Status),
		SessionID: record.SessionID,
		CreatedAt: record.CreatedAt.UTC(),
	}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAttendanceExists
		}
		return err
	}
	return nil
}

func (r *PostgresAttendanceRepository) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		First(&rec, "user_id = ? AND date = ?", userID, date.UTC().Format(time.DateOnly)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}
	return toDomainAttendance(&rec), nil
}

func (r *PostgresAttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]*domain.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("date = ?", date.UTC().Format(time.DateOnly)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.AttendanceRecord, 0, len(rows))
	for i := range rows {
		result = append(result, toDomainAttendance(&rows[i]))
	}
	return result, nil
}

func toModelUser(user *domain.User) *model.User {
	var email *string
	if user.Email != "" {
		e := user.Email
		email = &e
	}
	return &model.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}

func toDomainUser(user *model.User) *domain.User {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}

	return &domain.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     email,
		Role:      domain.Role(user.Role),
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
}

func toModelRoom(room *domain.ChatRoom) (*model.ChatRoom, error) {
	members, err := marshalJSON(room.Members)
	if err != nil {
		return nil, err
	}

	out := &model.ChatRoom{
		ID:        room.ID,
		MissionID: room.MissionID,
		Name:      room.Name,
		Members:   members,
		CreatedAt: room.CreatedAt.UTC(),
	}
	if p := room.LastMessage; p != nil {
		id, sender, body, at := p.MessageID, p.SenderID, p.Body, p.SentAt.UTC()
		out.LastMessageID = &id
		out.LastMessageSender = &sender
		out.LastMessageBody = &body
		out.LastMessageAt = &at
	}
	return out, nil
}

func toDomainRoom(room *model.ChatRoom) (*domain.ChatRoom, error) {
	var members []uuid.UUID
	if err := unmarshalJSON(room.Members, &members); err != nil {
		return nil, err
	}

	out := &domain.ChatRoom{
		ID:        room.ID,
		MissionID: room.MissionID,
		Name:      room.Name,
		Members:   members,
		CreatedAt: room.CreatedAt.UTC(),
	}
	if room.LastMessageID != nil && room.LastMessageAt != nil {
		preview := domain.MessagePreview{
			MessageID: *room.LastMessageID,
			SentAt:    room.LastMessageAt.UTC(),
		}
		if room.LastMessageSender != nil {
			preview.SenderID = *room.LastMessageSender
		}
		if room.LastMessageBody != nil {
			preview.Body = *room.LastMessageBody
		}
		out.LastMessage = &preview
	}
	return out, nil
}

func toModelMessage(msg *domain.ChatMessage) (*model.ChatMessage, error) {
	readBy, err := marshalJSON(msg.ReadBy)
	if err != nil {
		return nil, err
	}
	reactions, err := marshalJSON(msg.Reactions)
	if err != nil {
		return nil, err
	}
	return &model.ChatMessage{
		ID:        msg.ID,
		MissionID: msg.MissionID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.UTC(),
		ReadBy:    readBy,
		Reactions: reactions,
	}, nil
}

func toDomainMessage(msg *model.ChatMessage) (*domain.ChatMessage, error) {
	out := &domain.ChatMessage{
		ID:        msg.ID,
		MissionID: msg.MissionID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.UTC(),
	}
	if err := unmarshalJSON(msg.ReadBy, &out.ReadBy); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(msg.Reactions, &out.Reactions); err != nil {
		return nil, err
	}
	return out, nil
}

func toDomainAttendance(rec *model.AttendanceRecord) *domain.AttendanceRecord {
	y, m, d := rec.Date.Date()
	return &domain.AttendanceRecord{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Status:    domain.AttendanceStatus(rec.Status),
		SessionID: rec.SessionID,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

func marshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return datatypes.JSON(b), nil
}

func unmarshalJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
