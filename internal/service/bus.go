package service

import (
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/leandro-lugaresi/hub"
)

// publish hands ev to the bus. An empty room delivers to every connection.
func publish(bus *hub.Hub, topic string, room string, ev domain.ServerEvent) {
	if bus == nil {
		return
	}
	fields := hub.Fields{FieldEvent: ev}
	if room != "" {
		fields[FieldRoom] = room
	}
	bus.Publish(hub.Message{Name: topic, Fields: fields})
}
