package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUsers      = "users"
	collMissions   = "missions"
	collChatRooms  = "chat_rooms"
	collMessages   = "chat_messages"
	collAttendance = "attendance_records"
)

func OpenMongo(ctx context.Context, uri string, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(database), nil
}

// MigrateMongo creates the unique indexes the gateway relies on.
func MigrateMongo(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
			},
		},
		collChatRooms: {
			{Keys: bson.D{{Key: "mission_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collMessages: {
			{Keys: bson.D{{Key: "mission_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		collAttendance: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "date", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:      &MongoUserRepository{coll: db.Collection(collUsers)},
		Missions:   &MongoMissionRepository{coll: db.Collection(collMissions)},
		Chat:       &MongoChatRepository{rooms: db.Collection(collChatRooms), messages: db.Collection(collMessages)},
		Attendance: &MongoAttendanceRepository{coll: db.Collection(collAttendance)},
		close: func(ctx context.Context) error {
			return db.Client().Disconnect(ctx)
		},
	}
}

type userDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     *string   `bson:"email,omitempty"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type missionDoc struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	CreatedBy string    `bson:"created_by"`
	Members   []string  `bson:"members"`
	CreatedAt time.Time `bson:"created_at"`
}

type previewDoc struct {
	MessageID string    `bson:"message_id"`
	SenderID  string    `bson:"sender_id"`
	Body      string    `bson:"body"`
	SentAt    time.Time `bson:"sent_at"`
}

type chatRoomDoc struct {
	ID          string      `bson:"_id"`
	MissionID   string      `bson:"mission_id"`
	Name        string      `bson:"name"`
	Members     []string    `bson:"members"`
	CreatedAt   time.Time   `bson:"created_at"`
	LastMessage *previewDoc `bson:"last_message,omitempty"`
}

type reactionDoc struct {
	UserID    string    `bson:"user_id"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"created_at"`
}

type messageDoc struct {
	ID        string        `bson:"_id"`
	MissionID string        `bson:"mission_id"`
	SenderID  string        `bson:"sender_id"`
	Body      string        `bson:"body"`
	CreatedAt time.Time     `bson:"created_at"`
	ReadBy    []string      `bson:"read_by"`
	Reactions []reactionDoc `bson:"reactions"`
}

type attendanceDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Date      string    `bson:"date"`
	Status    string    `bson:"status"`
	SessionID *string   `bson:"session_id,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

type MongoUserRepository struct {
	coll *mongo.Collection
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserEmailExists
		}
		return err
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return fromUserDoc(&doc)
}

func (r *MongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	doc := toUserDoc(user)
	update := bson.M{
		"$set": bson.M{"name": doc.Name, "role": doc.Role, "updated_at": doc.UpdatedAt},
	}
	if doc.Email == nil {
		update["$unset"] = bson.M{"email": ""}
	} else {
		update["$set"].(bson.M)["email"] = *doc.Email
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserEmailExists
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*domain.User, 0, len(docs))
	for i := range docs {
		u, err := fromUserDoc(&docs[i])
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, nil
}

func (r *MongoUserRepository) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

type MongoMissionRepository struct {
	coll *mongo.Collection
}

func (r *MongoMissionRepository) Create(ctx context.Context, mission *domain.Mission) error {
	_, err := r.coll.InsertOne(ctx, missionDoc{
		ID:        mission.ID.String(),
		Title:     mission.Title,
		CreatedBy: mission.CreatedBy.String(),
		Members:   uuidStrings(mission.Members),
		CreatedAt: mission.CreatedAt.UTC(),
	})
	return err
}

func (r *MongoMissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mission, error) {
	var doc missionDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMissionNotFound
		}
		return nil, err
	}

	createdBy, err := uuid.Parse(doc.CreatedBy)
	if err != nil {
		return nil, err
	}
	members, err := parseUUIDs(doc.Members)
	if err != nil {
		return nil, err
	}
	return &domain.Mission{
		ID:        id,
		Title:     doc.Title,
		CreatedBy: createdBy,
		Members:   members,
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

type MongoChatRepository struct {
	rooms    *mongo.Collection
	messages *mongo.Collection
}

func (r *MongoChatRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	_, err := r.rooms.InsertOne(ctx, chatRoomDoc{
		ID:        room.ID.String(),
		MissionID: room.MissionID.String(),
		Name:      room.Name,
		Members:   uuidStrings(room.Members),
		CreatedAt: room.CreatedAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrChatRoomExists
		}
		return err
	}
	return nil
}

func (r *MongoChatRepository) GetRoomByMission(ctx context.Context, missionID uuid.UUID) (*domain.ChatRoom, error) {
	var doc chatRoomDoc
	if err := r.rooms.FindOne(ctx, bson.M{"mission_id": missionID.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChatRoomNotFound
		}
		return nil, err
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	members, err := parseUUIDs(doc.Members)
	if err != nil {
		return nil, err
	}

	room := &domain.ChatRoom{
		ID:        id,
		MissionID: missionID,
		Name:      doc.Name,
		Members:   members,
		CreatedAt: doc.CreatedAt.UTC(),
	}
	if p := doc.LastMessage; p != nil {
		msgID, _ := uuid.Parse(p.MessageID)
		sender, _ := uuid.Parse(p.SenderID)
		room.LastMessage = &domain.MessagePreview{
			MessageID: msgID,
			SenderID:  sender,
			Body:      p.Body,
			SentAt:    p.SentAt.UTC(),
		}
	}
	return room, nil
}

func (r *MongoChatRepository) UpdateRoomPreview(ctx context.Context, missionID uuid.UUID, preview domain.MessagePreview) error {
	sentAt := preview.SentAt.UTC()
	filter := bson.M{
		"mission_id": missionID.String(),
		"$or": bson.A{
			bson.M{"last_message": bson.M{"$exists": false}},
			bson.M{"last_message.sent_at": bson.M{"$lte": sentAt}},
		},
	}
	_, err := r.rooms.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_message": previewDoc{
		MessageID: preview.MessageID.String(),
		SenderID:  preview.SenderID.String(),
		Body:      preview.Body,
		SentAt:    sentAt,
	}}})
	return err
}

func (r *MongoChatRepository) CreateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := r.messages.InsertOne(ctx, toMessageDoc(msg))
	return err
}

func (r *MongoChatRepository) GetMessage(ctx context.Context, id uuid.UUID) (*domain.ChatMessage, error) {
	var doc messageDoc
	if err := r.messages.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageDoc(&doc)
}

func (r *MongoChatRepository) ListMessages(ctx context.Context, missionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.messages.Find(ctx, bson.M{"mission_id": missionID.String()}, opts)
	if err != nil {
		return nil, err
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*domain.ChatMessage, len(docs))
	for i := range docs {
		msg, err := fromMessageDoc(&docs[i])
		if err != nil {
			return nil, err
		}
		result[len(docs)-1-i] = msg
	}
	return result, nil
}

func (r *MongoChatRepository) MarkRead(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) error {
	res, err := r.messages.UpdateOne(ctx,
		bson.M{"_id": messageID.String()},
		bson.M{"$addToSet": bson.M{"read_by": userID.String()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *MongoChatRepository) AddReaction(ctx context.Context, messageID uuid.UUID, reaction domain.Reaction) (*domain.ChatMessage, error) {
	filter := bson.M{
		"_id": messageID.String(),
		"reactions": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"user_id": reaction.UserID.String(),
			"emoji":   reaction.Emoji,
		}}},
	}
	update := bson.M{"$push": bson.M{"reactions": reactionDoc{
		UserID:    reaction.UserID.String(),
		Emoji:     reaction.Emoji,
		CreatedAt: reaction.CreatedAt.UTC(),
	}}}

	var doc messageDoc
	err := r.messages.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either unknown message or the reaction is already there
		return r.GetMessage(ctx, messageID)
	}
	if err != nil {
		return nil, err
	}
	return fromMessageDoc(&doc)
}

type MongoAttendanceRepository struct {
	coll *mongo.Collection
}

func (r *MongoAttendanceRepository) Create(ctx context.Context, record *domain.AttendanceRecord) error {
	doc := attendanceDoc{
		ID:        record.ID.String(),
		UserID:    record.UserID.String(),
		Date:      dayKey(record.Date),
		Status:    string(record.Status),
		CreatedAt: record.CreatedAt.UTC(),
	}
	if record.SessionID != nil {
		sid := record.SessionID.String()
		doc.SessionID = &sid
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAttendanceExists
		}
		return err
	}
	return nil
}

func (r *MongoAttendanceRepository) GetByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.AttendanceRecord, error) {
	var doc attendanceDoc
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID.String(), "date": dayKey(date)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAttendanceNotFound
		}
		return nil, err
	}
	return fromAttendanceDoc(&doc)
}

func (r *MongoAttendanceRepository) ListByDate(ctx context.Context, date time.Time) ([]*domain.AttendanceRecord, error) {
	cur, err := r.coll.Find(ctx, bson.M{"date": dayKey(date)},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []attendanceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*domain.AttendanceRecord, 0, len(docs))
	for i := range docs {
		rec, err := fromAttendanceDoc(&docs[i])
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

func toUserDoc(user *domain.User) userDoc {
	doc := userDoc{
		ID:        user.ID.String(),
		Name:      user.Name,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UTC(),
		UpdatedAt: user.UpdatedAt.UTC(),
	}
	if user.Email != "" {
		e := user.Email
		doc.Email = &e
	}
	return doc
}

func fromUserDoc(doc *userDoc) (*domain.User, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:        id,
		Name:      doc.Name,
		Role:      domain.Role(doc.Role),
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	if doc.Email != nil {
		user.Email = *doc.Email
	}
	return user, nil
}

func toMessageDoc(msg *domain.ChatMessage) messageDoc {
	reactions := make([]reactionDoc, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, reactionDoc{
			UserID:    r.UserID.String(),
			Emoji:     r.Emoji,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return messageDoc{
		ID:        msg.ID.String(),
		MissionID: msg.MissionID.String(),
		SenderID:  msg.SenderID.String(),
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt.UTC(),
		ReadBy:    uuidStrings(msg.ReadBy),
		Reactions: reactions,
	}
}

func fromMessageDoc(doc *messageDoc) (*domain.ChatMessage, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	missionID, err := uuid.Parse(doc.MissionID)
	if err != nil {
		return nil, err
	}
	senderID, err := uuid.Parse(doc.SenderID)
	if err != nil {
		return nil, err
	}
	readBy, err := parseUUIDs(doc.ReadBy)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		ID:        id,
		MissionID: missionID,
		SenderID:  senderID,
		Body:      doc.Body,
		CreatedAt: doc.CreatedAt.UTC(),
		ReadBy:    readBy,
	}
	for _, rd := range doc.Reactions {
		uid, err := uuid.Parse(rd.UserID)
		if err != nil {
			return nil, err
		}
		msg.Reactions = append(msg.Reactions, domain.Reaction{
			UserID:    uid,
			Emoji:     rd.Emoji,
			CreatedAt: rd.CreatedAt.UTC(),
		})
	}
	return msg, nil
}

func fromAttendanceDoc(doc *attendanceDoc) (*domain.AttendanceRecord, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(time.DateOnly, doc.Date)
	if err != nil {
		return nil, err
	}

	rec := &domain.AttendanceRecord{
		ID:        id,
		UserID:    userID,
		Date:      date,
		Status:    domain.AttendanceStatus(doc.Status),
		CreatedAt: doc.CreatedAt.UTC(),
	}
	if doc.SessionID != nil {
		sid, err := uuid.Parse(*doc.SessionID)
		if err != nil {
			return nil, err
		}
		rec.SessionID = &sid
	}
	return rec, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
