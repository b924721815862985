package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Mission struct {
	ID        uuid.UUID
	Title     string
	CreatedBy uuid.UUID
	Members   []uuid.UUID
	CreatedAt time.Time
}

func NewMission(title string, createdBy uuid.UUID, members []uuid.UUID) *Mission {
	all := make([]uuid.UUID, 0, len(members)+1)
	all = append(all, createdBy)
	for _, m := range members {
		if m == uuid.Nil || slices.Contains(all, m) {
			continue
		}
		all = append(all, m)
	}
	return &Mission{
		ID:        uuid.New(),
		Title:     title,
		CreatedBy: createdBy,
		Members:   all,
		CreatedAt: time.Now().UTC(),
	}
}
