package realtime

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/immxrtalbeast/missionops/internal/domain"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)

type outbound struct {
	Event string             `json:"event"`
	Data  domain.ServerEvent `json:"data"`
}

// Encode renders ev as an {"event","data"} text frame.
func Encode(ev domain.ServerEvent) ([]byte, error) {
	return json.Marshal(outbound{Event: ev.EventName(), Data: ev})
}

// Decode parses a client frame into its typed variant.
func Decode(frame []byte) (domain.ClientEvent, error) {
	var env domain.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var ev domain.ClientEvent
	switch env.Event {
	case domain.EventStartAttendance:
		ev = &domain.StartAttendance{}
	case domain.EventSubmitOTP:
		ev = &domain.SubmitOTP{}
	case domain.EventGetActiveSession:
		ev = &domain.GetActiveSession{}
	case domain.EventCancelAttendance:
		ev = &domain.CancelAttendance{}
	case domain.EventJoinMissionRoom:
		ev = &domain.JoinMissionRoom{}
	case domain.EventSendMessage:
		ev = &domain.SendMessage{}
	case domain.EventMarkRead:
		ev = &domain.MarkRead{}
	case domain.EventReactMessage:
		ev = &domain.ReactMessage{}
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}
	return ev, nil
}
