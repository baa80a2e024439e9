package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
	"github.com/vedran77/chatsync/internal/query"
	"github.com/vedran77/chatsync/internal/repository/memory"
)

type fixture struct {
	users    *memory.UserRepo
	auth     *AuthService
	convs    *ConversationService
	messages *MessageService
	markers  *ReadMarkerService
}

func newFixture() *fixture {
	db := memory.New()
	users := memory.NewUserRepo(db)
	convRepo := memory.NewConversationRepo(db)
	return &fixture{
		users:    users,
		auth:     NewAuthService(users, "test-secret", time.Hour),
		convs:    NewConversationService(convRepo, users),
		messages: NewMessageService(memory.NewMessageRepo(db), convRepo),
		markers:  NewReadMarkerService(memory.NewReadMarkerRepo(db), convRepo),
	}
}

func (f *fixture) register(t *testing.T, name string) uuid.UUID {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), RegisterInput{
		Email: name + "@example.com", Username: name, DisplayName: name, Password: "Passw0rdX",
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return resp.User.ID
}

func TestAuthRegisterLoginVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	id := f.register(t, "ana")

	if _, err := f.auth.Register(ctx, RegisterInput{Email: "ANA@example.com", Username: "other", Password: "x"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCreds) {
		t.Fatalf("expected ErrInvalidCreds, got %v", err)
	}

	resp, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "Passw0rdX"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, err := f.auth.VerifyToken(resp.AccessToken)
	if err != nil || got != id {
		t.Fatalf("VerifyToken = %v, %v; want %v", got, err, id)
	}
	if _, err := f.auth.VerifyToken(resp.AccessToken + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}
}

func TestGetOrCreateDirectIsOrientationIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.register(t, "ana"), f.register(t, "bo")

	c1, err := f.convs.GetOrCreateDirect(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := f.convs.GetOrCreateDirect(ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("got two conversations %v and %v", c1.ID, c2.ID)
	}
	if c2.Counterpart == nil || c2.Counterpart.ID != a {
		t.Fatalf("counterpart = %+v", c2.Counterpart)
	}

	if _, err := f.convs.GetOrCreateDirect(ctx, a, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetDirectFavouriteCreatesConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.register(t, "ana"), f.register(t, "bo")

	conv, err := f.convs.SetDirectFavourite(ctx, a, b, true)
	if err != nil {
		t.Fatal(err)
	}
	list, _ := f.convs.List(ctx, a)
	if len(list) != 1 || list[0].ID != conv.ID || !list[0].Favourite {
		t.Fatalf("list for a = %+v", list)
	}
	listB, _ := f.convs.List(ctx, b)
	if len(listB) != 1 || listB[0].Favourite {
		t.Fatalf("favourite must be per user, list for b = %+v", listB)
	}
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b, c := f.register(t, "ana"), f.register(t, "bo"), f.register(t, "cy")

	if _, err := f.convs.CreateGroup(ctx, a, CreateGroupInput{Name: "solo", MemberIDs: []uuid.UUID{a}}); !errors.Is(err, ErrGroupTooSmall) {
		t.Fatalf("expected ErrGroupTooSmall, got %v", err)
	}
	g, err := f.convs.CreateGroup(ctx, a, CreateGroupInput{Name: " trip ", MemberIDs: []uuid.UUID{b, c, b}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "trip" || len(g.Members) != 3 {
		t.Fatalf("group = %+v", g)
	}
}

func TestSendDerivesReceiverAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b, c := f.register(t, "ana"), f.register(t, "bo"), f.register(t, "cy")
	conv, _ := f.convs.GetOrCreateDirect(ctx, a, b)
	group, _ := f.convs.CreateGroup(ctx, a, CreateGroupInput{Name: "g", MemberIDs: []uuid.UUID{b, c}})

	in := domain.NewMessage{ConversationID: conv.ID, Kind: domain.KindText, Content: "hi", ClientKey: "key-1", ReceiverID: &c}
	m1, err := f.messages.Send(ctx, a, in)
	if err != nil {
		t.Fatal(err)
	}
	if m1.ReceiverID == nil || *m1.ReceiverID != b {
		t.Fatalf("receiver = %v, want %v", m1.ReceiverID, b)
	}
	m2, err := f.messages.Send(ctx, a, in)
	if err != nil {
		t.Fatal(err)
	}
	if m2.ID != m1.ID {
		t.Fatalf("retry created %v, want %v", m2.ID, m1.ID)
	}

	gm, err := f.messages.Send(ctx, c, domain.NewMessage{ConversationID: group.ID, Kind: domain.KindText, Content: "yo"})
	if err != nil {
		t.Fatal(err)
	}
	if gm.ReceiverID != nil {
		t.Fatalf("group message has receiver %v", gm.ReceiverID)
	}

	if _, err := f.messages.Send(ctx, c, domain.NewMessage{ConversationID: conv.ID, Kind: domain.KindText, Content: "x"}); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}

	msgs, err := f.messages.List(ctx, b, ListMessagesInput{Filter: query.Participants(b, a)})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("b sees %d messages, want 1", len(msgs))
	}
}

func TestMarkReadOnlyByReceiver(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.register(t, "ana"), f.register(t, "bo")
	conv, _ := f.convs.GetOrCreateDirect(ctx, a, b)
	msg, _ := f.messages.Send(ctx, a, domain.NewMessage{ConversationID: conv.ID, Kind: domain.KindText, Content: "hi"})

	if _, err := f.messages.MarkRead(ctx, a, msg.ID); !errors.Is(err, ErrNotReceiver) {
		t.Fatalf("sender marked own message: %v", err)
	}
	got, err := f.messages.MarkRead(ctx, b, msg.ID)
	if err != nil || !got.Read {
		t.Fatalf("MarkRead = %+v, %v", got, err)
	}
	if _, err := f.messages.MarkRead(ctx, b, uuid.New()); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestTouchMarkerMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a, b := f.register(t, "ana"), f.register(t, "bo")
	conv, _ := f.convs.GetOrCreateDirect(ctx, a, b)

	later := time.Now()
	earlier := later.Add(-time.Hour)
	if _, err := f.markers.Touch(ctx, a, conv.ID, later); err != nil {
		t.Fatal(err)
	}
	m, err := f.markers.Touch(ctx, a, conv.ID, earlier)
	if err != nil {
		t.Fatal(err)
	}
	if !m.LastReadAt.Equal(later) {
		t.Fatalf("marker moved back to %v", m.LastReadAt)
	}

	future := time.Now().Add(24 * time.Hour)
	m, _ = f.markers.Touch(ctx, b, conv.ID, future)
	if m.LastReadAt.After(time.Now().Add(time.Minute)) {
		t.Fatalf("future marker not clamped: %v", m.LastReadAt)
	}

	outsider := f.register(t, "cy")
	if _, err := f.markers.Touch(ctx, outsider, conv.ID, later); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}
