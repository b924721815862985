package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
)

const attendanceSuccessMessage = "attendance marked, you are present today"

// Dispatcher routes decoded client events to the services and turns their
// results into unicast replies. Broadcasts travel through the bus.
type Dispatcher struct {
	attendance service.AttendanceInteractor
	chat       service.ChatInteractor
	manager    *Manager
	validate   *validator.Validate
	log        *slog.Logger
}

func NewDispatcher(attendance service.AttendanceInteractor, chat service.ChatInteractor, manager *Manager, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		attendance: attendance,
		chat:       chat,
		manager:    manager,
		validate:   validator.New(),
		log:        log,
	}
}

// Dispatch handles one inbound frame of c. A panic is contained to c.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, frame []byte) {
	const op = "realtime.dispatch"
	log := d.log.With(slog.String("op", op), slog.String("client_id", c.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			c.Close()
		}
	}()

	ev, err := Decode(frame)
	if err != nil {
		log.Debug("rejecting frame", sl.Err(err))
		c.Send(domain.ErrorNotice{Message: err.Error()})
		return
	}

	if err := d.validate.Struct(ev); err != nil {
		d.rejectInvalid(ctx, c, ev, err, log)
		return
	}

	switch ev := ev.(type) {
	case *domain.StartAttendance:
		d.startAttendance(ctx, c, ev, log)
	case *domain.SubmitOTP:
		d.submitOTP(ctx, c, ev, log)
	case *domain.GetActiveSession:
		if data, ok := d.attendance.ActiveSession(ctx, c.User); ok {
			c.Send(*data)
		}
	case *domain.CancelAttendance:
		if err := d.attendance.Cancel(ctx, c.User, uuid.MustParse(ev.SessionID)); err != nil {
			c.Send(domain.ErrorNotice{Message: service.PublicMessage(err)})
		}
	case *domain.JoinMissionRoom:
		room, err := d.chat.Join(ctx, c.User, uuid.MustParse(ev.RoomID))
		if err != nil {
			c.Send(domain.ErrorNotice{Message: service.PublicMessage(err)})
			return
		}
		d.manager.Join(c, service.RoomKey(room.MissionID))
	case *domain.SendMessage:
		d.sendMessage(ctx, c, ev, log)
	case *domain.MarkRead:
		if err := d.chat.MarkRead(ctx, c.User, uuid.MustParse(ev.MessageID)); err != nil {
			c.Send(domain.ErrorNotice{Message: service.PublicMessage(err)})
		}
	case *domain.ReactMessage:
		if _, err := d.chat.React(ctx, c.User, uuid.MustParse(ev.MessageID), ev.Emoji); err != nil {
			c.Send(domain.ErrorNotice{Message: service.PublicMessage(err)})
		}
	default:
		panic(fmt.Sprintf("unhandled client event %T", ev))
	}
}

func (d *Dispatcher) startAttendance(ctx context.Context, c *Client, ev *domain.StartAttendance, log *slog.Logger) {
	if ev.InitiatorID != "" && ev.InitiatorID != c.User.ID.String() {
		log.Warn("initiator id differs from connection identity", slog.String("initiator_id", ev.InitiatorID))
	}

	session, err := d.attendance.Start(ctx, c.User)
	if err != nil {
		c.Send(domain.ErrorNotice{Message: service.PublicMessage(err)})
		return
	}

	c.Send(domain.OTPGenerated{
		Code:          session.Code,
		SessionID:     session.ID.String(),
		WindowSeconds: int(session.Window().Seconds()),
	})
}

func (d *Dispatcher) submitOTP(ctx context.Context, c *Client, ev *domain.SubmitOTP, log *slog.Logger) {
	if ev.UserID != "" && ev.UserID != c.User.ID.String() {
		log.Warn("submitted user id differs from connection identity", slog.String("payload_user_id", ev.UserID))
	}

	if _, err := d.attendance.Submit(ctx, c.User, uuid.MustParse(ev.SessionID), ev.Code); err != nil {
		c.Send(domain.AttendanceFailed{Message: service.PublicMessage(err)})
		return
	}
	c.Send(domain.AttendanceSuccess{Message: attendanceSuccessMessage})
}

func (d *Dispatcher) sendMessage(ctx context.Context, c *Client, ev *domain.SendMessage, log *slog.Logger) {
	_, err := d.chat.Send(ctx, c.User, service.SendInput{
		RoomID:   ev.RoomID,
		SenderID: ev.SenderID,
		Body:     ev.Body,
	})
	if err == nil {
		return
	}
	if errors.Is(err, service.ErrInvalidMessage) {
		return
	}
	log.Info("send failed", sl.Err(err))
	c.Send(domain.MessageError{Message: service.PublicMessage(err)})
}

// rejectInvalid answers a payload that failed validation. Malformed chat
// messages are dropped without a reply. A malformed code for a well-formed
// session id still goes through Submit so the session is checked first.
func (d *Dispatcher) rejectInvalid(ctx context.Context, c *Client, ev domain.ClientEvent, err error, log *slog.Logger) {
	log.Debug("invalid payload", slog.String("event", ev.EventName()), sl.Err(err))

	switch ev := ev.(type) {
	case *domain.SendMessage:
	case *domain.SubmitOTP:
		if _, perr := uuid.Parse(ev.SessionID); perr != nil {
			c.Send(domain.AttendanceFailed{Message: service.ErrSessionExpired.Error()})
			return
		}
		d.submitOTP(ctx, c, ev, log)
	default:
		c.Send(domain.ErrorNotice{Message: "invalid " + ev.EventName() + " payload"})
	}
}
