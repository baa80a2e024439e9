// Package query holds the filter predicates used to list messages and
// conversations. An Expr travels as JSON between client and server, is
// evaluated in memory by Match and compiled to SQL by SQL.
package query

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/chatsync/internal/domain"
)

type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpAnd      Op = "and"
	OpOr       Op = "or"
)

type Field string

const (
	FieldConversation Field = "conversation_id"
	FieldSender       Field = "sender_id"
	FieldReceiver     Field = "receiver_id"
	FieldMembers      Field = "members"
	FieldKind         Field = "kind"
	FieldCreatedAt    Field = "created_at"
)

const maxDepth = 8

var (
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidOrder  = errors.New("invalid order")
)

type Expr struct {
	Op     Op       `json:"op"`
	Field  Field    `json:"field,omitempty"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
	Args   []Expr   `json:"args,omitempty"`
}

type Order struct {
	Field Field `json:"field"`
	Desc  bool  `json:"desc"`
}

// Newest orders by creation time, most recent first.
var Newest = Order{Field: FieldCreatedAt, Desc: true}

// Oldest orders by creation time, oldest first.
var Oldest = Order{Field: FieldCreatedAt}

func Eq(field Field, value string) Expr {
	return Expr{Op: OpEq, Field: field, Value: value}
}

func EqID(field Field, id uuid.UUID) Expr {
	return Eq(field, id.String())
}

func In(field Field, values ...string) Expr {
	return Expr{Op: OpIn, Field: field, Values: values}
}

func InIDs(field Field, ids ...uuid.UUID) Expr {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return In(field, values...)
}

func Contains(field Field, value string) Expr {
	return Expr{Op: OpContains, Field: field, Value: value}
}

func And(args ...Expr) Expr {
	return Expr{Op: OpAnd, Args: args}
}

func Or(args ...Expr) Expr {
	return Expr{Op: OpOr, Args: args}
}

// Participants matches direct messages between a and b regardless of which
// one is stored as sender.
func Participants(a, b uuid.UUID) Expr {
	return Or(
		And(EqID(FieldSender, a), EqID(FieldReceiver, b)),
		And(EqID(FieldSender, b), EqID(FieldReceiver, a)),
	)
}

// Aggregate matches every message visible to me: sent by me, addressed to me,
// or posted in one of my groups.
func Aggregate(me uuid.UUID, groupIDs []uuid.UUID) Expr {
	return Or(
		EqID(FieldSender, me),
		EqID(FieldReceiver, me),
		InIDs(FieldConversation, groupIDs...),
	)
}

func (e Expr) Validate() error {
	return e.validate(0)
}

func (e Expr) validate(depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nested deeper than %d", ErrInvalidFilter, maxDepth)
	}
	switch e.Op {
	case OpAnd, OpOr:
		if len(e.Args) == 0 {
			return fmt.Errorf("%w: %s needs at least one argument", ErrInvalidFilter, e.Op)
		}
		for _, a := range e.Args {
			if err := a.validate(depth + 1); err != nil {
				return err
			}
		}
		return nil
	case OpEq, OpContains:
		if e.Op == OpContains && e.Field != FieldMembers {
			return fmt.Errorf("%w: contains only applies to %s", ErrInvalidFilter, FieldMembers)
		}
		if e.Op == OpEq && e.Field == FieldMembers {
			return fmt.Errorf("%w: use contains for %s", ErrInvalidFilter, FieldMembers)
		}
		return checkValue(e.Field, e.Value)
	case OpIn:
		if e.Field == FieldMembers {
			return fmt.Errorf("%w: in does not apply to %s", ErrInvalidFilter, FieldMembers)
		}
		for _, v := range e.Values {
			if err := checkValue(e.Field, v); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown op %q", ErrInvalidFilter, e.Op)
}

func (o Order) Validate() error {
	if o.Field != FieldCreatedAt {
		return fmt.Errorf("%w: cannot order by %q", ErrInvalidOrder, o.Field)
	}
	return nil
}

func checkValue(field Field, value string) error {
	switch field {
	case FieldConversation, FieldSender, FieldReceiver, FieldMembers:
		if _, err := uuid.Parse(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidFilter, field, err)
		}
	case FieldKind:
		if _, err := domain.ParseKind(value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, field)
	}
	return nil
}
