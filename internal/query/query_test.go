package query

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

func TestParticipantsOrientationIndependent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	f := Participants(a, b)

	tests := []struct {
		name     string
		sender   uuid.UUID
		receiver uuid.UUID
		want     bool
	}{
		{"a to b", a, b, true},
		{"b to a", b, a, true},
		{"a to c", a, c, false},
		{"c to b", c, b, false},
		{"a to a", a, a, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.receiver
			m := &domain.Message{SenderID: tt.sender, ReceiverID: &r}
			if got := f.MatchMessage(m); got != tt.want {
				t.Errorf("MatchMessage = %v, want %v", got, tt.want)
			}
		})
	}

	// The filter built from the other side's point of view matches the same set.
	g := Participants(b, a)
	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		r := pair[1]
		m := &domain.Message{SenderID: pair[0], ReceiverID: &r}
		if f.MatchMessage(m) != g.MatchMessage(m) {
			t.Errorf("Participants(a,b) and Participants(b,a) disagree on %v->%v", pair[0], pair[1])
		}
	}
}

func TestAggregate(t *testing.T) {
	me, other, group, otherGroup := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	f := Aggregate(me, []uuid.UUID{group})

	tests := []struct {
		name string
		msg  domain.Message
		want bool
	}{
		{"sent by me", domain.Message{SenderID: me, ReceiverID: &other}, true},
		{"sent to me", domain.Message{SenderID: other, ReceiverID: &me}, true},
		{"in my group", domain.Message{SenderID: other, ConversationID: group}, true},
		{"in another group", domain.Message{SenderID: other, ConversationID: otherGroup}, false},
	}
	for _, tt := range tests {
		if got := f.MatchMessage(&tt.msg); got != tt.want {
			t.Errorf("%s: MatchMessage = %v, want %v", tt.name, got, tt.want)
		}
	}

	noGroups := Aggregate(me, nil)
	if err := noGroups.Validate(); err != nil {
		t.Fatalf("aggregate without groups must be valid: %v", err)
	}
	if noGroups.MatchMessage(&domain.Message{SenderID: other, ConversationID: group}) {
		t.Error("empty group set must match nothing")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
	}{
		{"unknown op", Expr{Op: "xor"}},
		{"unknown field", Eq("body", "x")},
		{"bad uuid", Eq(FieldSender, "not-a-uuid")},
		{"bad kind", Eq(FieldKind, "sticker")},
		{"empty and", And()},
		{"contains on sender", Contains(FieldSender, uuid.NewString())},
		{"eq on members", Eq(FieldMembers, uuid.NewString())},
	}
	for _, tt := range tests {
		if err := tt.expr.Validate(); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidFilter", tt.name, err)
		}
	}

	deep := Eq(FieldKind, "text")
	for i := 0; i < maxDepth+2; i++ {
		deep = And(deep)
	}
	if err := deep.Validate(); err == nil {
		t.Error("expected depth limit error")
	}
}

func TestJSONRoundTripKeepsSemantics(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	f := Participants(a, b)
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	var back Expr
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	m := &domain.Message{SenderID: b, ReceiverID: &a}
	if !back.MatchMessage(m) {
		t.Error("decoded filter must still match")
	}
}

func TestSQL(t *testing.T) {
	cols := Columns{
		FieldSender:       "m.sender_id",
		FieldReceiver:     "m.receiver_id",
		FieldConversation: "m.conversation_id",
		FieldCreatedAt:    "m.created_at",
	}
	a, b, g := uuid.New(), uuid.New(), uuid.New()

	clause, args, err := Participants(a, b).SQL(cols, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := "((m.sender_id = $2 AND m.receiver_id = $3) OR (m.sender_id = $4 AND m.receiver_id = $5))"
	if clause != want {
		t.Errorf("clause = %s\nwant      %s", clause, want)
	}
	if !reflect.DeepEqual(args, []any{a, b, b, a}) {
		t.Errorf("args = %v", args)
	}

	clause, args, err = Aggregate(a, []uuid.UUID{g}).SQL(cols, 1)
	if err != nil {
		t.Fatal(err)
	}
	if clause != "(m.sender_id = $1 OR m.receiver_id = $2 OR m.conversation_id = ANY($3))" {
		t.Errorf("clause = %s", clause)
	}
	if ids, ok := args[2].([]uuid.UUID); !ok || len(ids) != 1 || ids[0] != g {
		t.Errorf("group ids arg = %#v", args[2])
	}

	clause, _, err = Aggregate(a, nil).SQL(cols, 1)
	if err != nil {
		t.Fatal(err)
	}
	if clause != "(m.sender_id = $1 OR m.receiver_id = $2 OR FALSE)" {
		t.Errorf("clause = %s", clause)
	}

	if _, _, err := Contains(FieldMembers, a.String()).SQL(cols, 1); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("unmapped field must fail, got %v", err)
	}

	order, err := Newest.SQL(cols)
	if err != nil || order != "m.created_at DESC" {
		t.Errorf("order = %q, %v", order, err)
	}
	if _, err := (Order{Field: FieldSender}).SQL(cols); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}
