package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/api/http/converter"
	"github.com/immxrtalbeast/missionops/internal/service"
)

type MissionController struct {
	missions service.MissionInteractor
	chat     service.ChatInteractor
}

func NewMissionController(missions service.MissionInteractor, chat service.ChatInteractor) *MissionController {
	return &MissionController{missions: missions, chat: chat}
}

func (c *MissionController) CreateMission(ctx *gin.Context) {
	type request struct {
		Title     string   `json:"title" binding:"required,max=255"`
		MemberIDs []string `json:"memberIds" binding:"dive,uuid"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	members := make([]uuid.UUID, 0, len(req.MemberIDs))
	for _, raw := range req.MemberIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
			return
		}
		members = append(members, id)
	}

	mission, room, err := c.missions.CreateMission(ctx.Request.Context(), currentUser(ctx), req.Title, members)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"mission": converter.MissionToApi(mission, room)})
}

func (c *MissionController) Messages(ctx *gin.Context) {
	missionID, err := uuid.Parse(ctx.Param("missionID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid mission id"})
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	messages, err := c.chat.History(ctx.Request.Context(), currentUser(ctx), missionID, limit)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": messages})
}
