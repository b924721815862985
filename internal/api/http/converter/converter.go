package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
)

type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

type MissionResponse struct {
	ID        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	CreatedBy uuid.UUID         `json:"created_by"`
	Members   []uuid.UUID       `json:"members"`
	CreatedAt time.Time         `json:"created_at"`
	Room      *ChatRoomResponse `json:"room,omitempty"`
}

type ChatRoomResponse struct {
	ID          uuid.UUID              `json:"id"`
	MissionID   uuid.UUID              `json:"mission_id"`
	Name        string                 `json:"name"`
	Members     []uuid.UUID            `json:"members"`
	CreatedAt   time.Time              `json:"created_at"`
	LastMessage *domain.MessagePreview `json:"last_message,omitempty"`
}

type AttendanceResponse struct {
	ID        uuid.UUID               `json:"id"`
	UserID    uuid.UUID               `json:"user_id"`
	Date      string                  `json:"date"`
	Status    domain.AttendanceStatus `json:"status"`
	SessionID *uuid.UUID              `json:"session_id,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

func UserToApi(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func MissionToApi(m *domain.Mission, room *domain.ChatRoom) *MissionResponse {
	resp := &MissionResponse{
		ID:        m.ID,
		Title:     m.Title,
		CreatedBy: m.CreatedBy,
		Members:   m.Members,
		CreatedAt: m.CreatedAt,
	}
	if room != nil {
		resp.Room = ChatRoomToApi(room)
	}
	return resp
}

func ChatRoomToApi(r *domain.ChatRoom) *ChatRoomResponse {
	return &ChatRoomResponse{
		ID:          r.ID,
		MissionID:   r.MissionID,
		Name:        r.Name,
		Members:     r.Members,
		CreatedAt:   r.CreatedAt,
		LastMessage: r.LastMessage,
	}
}

func AttendanceToApi(records []*domain.AttendanceRecord) []AttendanceResponse {
	out := make([]AttendanceResponse, 0, len(records))
	for _, r := range records {
		out = append(out, AttendanceResponse{
			ID:        r.ID,
			UserID:    r.UserID,
			Date:      r.Date.Format(time.DateOnly),
			Status:    r.Status,
			SessionID: r.SessionID,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}
