package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/repository"
	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/require"
)

func fixedCode(code string) func(int) (string, error) {
	return func(int) (string, error) { return code, nil }
}

func mustCreateUser(t *testing.T, users repository.UserRepository, name string, role domain.Role) *domain.User {
	t.Helper()
	u := domain.NewUser(name, name+"@example.com", role)
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func receive(t *testing.T, sub hub.Subscription) hub.Message {
	t.Helper()
	select {
	case msg := <-sub.Receiver:
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected an event on the bus")
	}
	return hub.Message{}
}

func assertNoEvent(t *testing.T, sub hub.Subscription) {
	t.Helper()
	select {
	case msg := <-sub.Receiver:
		t.Fatalf("unexpected event %q", msg.Name)
	case <-time.After(50 * time.Millisecond):
	}
}
