package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Columns maps filter fields to SQL column expressions. Fields missing from
// the map are rejected.
type Columns map[Field]string

// SQL compiles the expression into a WHERE fragment. Placeholders start at
// $firstArg so the fragment can be appended to a query that already binds
// arguments.
func (e Expr) SQL(cols Columns, firstArg int) (string, []any, error) {
	if err := e.Validate(); err != nil {
		return "", nil, err
	}
	b := sqlBuilder{cols: cols, next: firstArg}
	clause, err := b.build(e)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

func (o Order) SQL(cols Columns) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	col, ok := cols[o.Field]
	if !ok {
		return "", fmt.Errorf("%w: no column for %q", ErrInvalidOrder, o.Field)
	}
	if o.Desc {
		return col + " DESC", nil
	}
	return col + " ASC", nil
}

type sqlBuilder struct {
	cols Columns
	args []any
	next int
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	p := fmt.Sprintf("$%d", b.next)
	b.next++
	return p
}

func (b *sqlBuilder) column(f Field) (string, error) {
	col, ok := b.cols[f]
	if !ok {
		return "", fmt.Errorf("%w: field %q not supported here", ErrInvalidFilter, f)
	}
	return col, nil
}

func (b *sqlBuilder) build(e Expr) (string, error) {
	switch e.Op {
	case OpAnd, OpOr:
		parts := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			p, err := b.build(a)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		sep := " AND "
		if e.Op == OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil

	case OpEq:
		col, err := b.column(e.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", col, b.bind(typed(e.Field, e.Value))), nil

	case OpContains:
		col, err := b.column(e.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = ANY(%s)", b.bind(typed(e.Field, e.Value)), col), nil

	case OpIn:
		col, err := b.column(e.Field)
		if err != nil {
			return "", err
		}
		if len(e.Values) == 0 {
			return "FALSE", nil
		}
		if isID(e.Field) {
			ids := make([]uuid.UUID, len(e.Values))
			for i, v := range e.Values {
				ids[i] = uuid.MustParse(v)
			}
			return fmt.Sprintf("%s = ANY(%s)", col, b.bind(ids)), nil
		}
		return fmt.Sprintf("%s = ANY(%s)", col, b.bind(e.Values)), nil
	}
	return "", fmt.Errorf("%w: unknown op %q", ErrInvalidFilter, e.Op)
}

func isID(f Field) bool {
	switch f {
	case FieldConversation, FieldSender, FieldReceiver, FieldMembers:
		return true
	}
	return false
}

// typed converts a validated value into the Go type pgx encodes for the column.
func typed(f Field, v string) any {
	if isID(f) {
		return uuid.MustParse(v)
	}
	return v
}
