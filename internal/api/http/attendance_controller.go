package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/missionops/internal/api/http/converter"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/clock"
)

type AttendanceController struct {
	attendance service.AttendanceInteractor
	clock      clock.Clock
	loc        *time.Location
}

func NewAttendanceController(attendance service.AttendanceInteractor, clk clock.Clock, loc *time.Location) *AttendanceController {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceController{attendance: attendance, clock: clk, loc: loc}
}

// ListDay serves GET /api/attendance?date=YYYY-MM-DD. Without a date it
// lists today.
func (c *AttendanceController) ListDay(ctx *gin.Context) {
	day := domain.Day(c.clock.Now(), c.loc)
	if raw := ctx.Query("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	records, err := c.attendance.ListDay(ctx.Request.Context(), currentUser(ctx), day)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"date":    day.Format(time.DateOnly),
		"records": converter.AttendanceToApi(records),
	})
}
