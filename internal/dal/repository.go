// internal/dal/repository.go
package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kba-plugin/internal/metrics"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNotFound       = errors.New("entity not found")
)

// Payload is a write request keyed by property name.
type Payload map[string]any

type statement struct {
	query string
	args  []any
}

// Repository reads and writes the entities of one definition.
type Repository struct {
	db        *sql.DB
	def       *RegisteredDefinition
	publisher EventPublisher
	now       func() time.Time
}

func NewRepository(db *sql.DB, def *RegisteredDefinition, publisher EventPublisher) *Repository {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Repository{
		db:        db,
		def:       def,
		publisher: publisher,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

func (r *Repository) Definition() *RegisteredDefinition {
	return r.def
}

func (r *Repository) table() string {
	return pq.QuoteIdentifier(r.def.EntityName())
}

func (r *Repository) column(f *Field) string {
	return pq.QuoteIdentifier(f.StorageName)
}

// Search loads the entities matching criteria into the definition's collection.
func (r *Repository) Search(ctx context.Context, criteria *Criteria) (Collection, error) {
	if criteria == nil {
		criteria = NewCriteria()
	}
	query, args, err := r.buildSelect(criteria)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.def.EntityName(), err)
	}
	defer rows.Close()

	fields := r.def.Fields().All()
	collection := r.def.NewCollection()
	for rows.Next() {
		values, err := scanValues(rows, fields)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.def.EntityName(), err)
		}
		entity := r.def.NewEntity()
		if err := entity.Hydrate(values); err != nil {
			return nil, fmt.Errorf("hydrate %s: %w", r.def.EntityName(), err)
		}
		if err := collection.Add(entity); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", r.def.EntityName(), err)
	}
	return collection, nil
}

func (r *Repository) buildSelect(c *Criteria) (string, []any, error) {
	fields := r.def.Fields().All()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = r.column(f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), r.table())

	var where []string
	var args []any
	if len(c.IDs) > 0 {
		ids := make([]string, len(c.IDs))
		for i, id := range c.IDs {
			ids[i] = id.String()
		}
		args = append(args, pq.Array(ids))
		where = append(where, fmt.Sprintf("%s = ANY($%d::uuid[])", r.column(r.def.PrimaryKey()), len(args)))
	}

	props := make([]string, 0, len(c.Equals))
	for p := range c.Equals {
		props = append(props, p)
	}
	sort.Strings(props)
	for _, p := range props {
		f, ok := r.def.Fields().Get(p)
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown property %q on %s", ErrInvalidPayload, p, r.def.EntityName())
		}
		v, err := convertValue(f, c.Equals[p])
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			where = append(where, fmt.Sprintf("%s IS NULL", r.column(f)))
			continue
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", r.column(f), len(args)))
	}
	if len(where) > 0 {
		fmt.Fprintf(&b, " WHERE %s", strings.Join(where, " AND "))
	}

	sorting := c.Sort
	if len(sorting) == 0 {
		sorting = []Sorting{{Property: CreatedAtProperty, Direction: Ascending}}
	}
	order := make([]string, 0, len(sorting))
	for _, s := range sorting {
		f, ok := r.def.Fields().Get(s.Property)
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot sort by %q on %s", ErrInvalidPayload, s.Property, r.def.EntityName())
		}
		dir := Ascending
		if strings.EqualFold(string(s.Direction), string(Descending)) {
			dir = Descending
		}
		order = append(order, fmt.Sprintf("%s %s", r.column(f), dir))
	}
	fmt.Fprintf(&b, " ORDER BY %s", strings.Join(order, ", "))

	if c.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", c.Limit)
	}
	if c.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", c.Offset)
	}
	return b.String(), args, nil
}

func scanValues(rows *sql.Rows, fields []*Field) (map[string]any, error) {
	dest := make([]any, len(fields))
	for i, f := range fields {
		switch f.Kind {
		case KindID:
			dest[i] = &uuid.NullUUID{}
		case KindBool:
			dest[i] = &sql.NullBool{}
		case KindDateTime:
			dest[i] = &sql.NullTime{}
		default:
			dest[i] = &sql.NullString{}
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(fields))
	for i, f := range fields {
		switch v := dest[i].(type) {
		case *uuid.NullUUID:
			values[f.PropertyName] = nullable(v.Valid, v.UUID)
		case *sql.NullBool:
			values[f.PropertyName] = nullable(v.Valid, v.Bool)
		case *sql.NullTime:
			values[f.PropertyName] = nullable(v.Valid, v.Time)
		case *sql.NullString:
			values[f.PropertyName] = nullable(v.Valid, v.String)
		}
	}
	return values, nil
}

func nullable[T any](valid bool, v T) any {
	if !valid {
		return nil
	}
	return v
}

// convertValue checks v against the field kind and returns the driver value.
func convertValue(f *Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindID:
		switch id := v.(type) {
		case uuid.UUID:
			return id, nil
		case string:
			parsed, err := uuid.Parse(id)
			if err != nil {
				return nil, fmt.Errorf("%w: %s is not a valid id: %v", ErrInvalidPayload, f.PropertyName, err)
			}
			return parsed, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindDateTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("%w: %s is not a valid timestamp: %v", ErrInvalidPayload, f.PropertyName, err)
			}
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidPayload, f.PropertyName, f.Kind, v)
}

// Create inserts new entities. Missing ids are generated.
func (r *Repository) Create(ctx context.Context, payloads []Payload) (*EntityWrittenEvent, error) {
	return r.write(ctx, OperationInsert, payloads)
}

// Update changes existing entities. Every payload needs an id.
func (r *Repository) Update(ctx context.Context, payloads []Payload) (*EntityWrittenEvent, error) {
	return r.write(ctx, OperationUpdate, payloads)
}

// Upsert inserts or updates by primary key. createdAt is kept on conflict.
func (r *Repository) Upsert(ctx context.Context, payloads []Payload) (*EntityWrittenEvent, error) {
	return r.write(ctx, OperationUpsert, payloads)
}

// Delete removes the entities with the given ids. The event lists only the
// ids that existed; ErrNotFound is returned when none did.
func (r *Repository) Delete(ctx context.Context, ids []uuid.UUID) (*EntityWrittenEvent, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids to delete", ErrInvalidPayload)
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	pk := r.column(r.def.PrimaryKey())
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1::uuid[]) RETURNING %s", r.table(), pk, pk)

	var deleted []uuid.UUID
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, pq.Array(strs))
		if err != nil {
			return err
		}
		defer rows.Close()

		gone := make(map[uuid.UUID]bool, len(ids))
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			gone[id] = true
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, id := range ids {
			if gone[id] {
				deleted = append(deleted, id)
			}
		}
		if len(deleted) == 0 {
			return fmt.Errorf("%w: %s %s", ErrNotFound, r.def.EntityName(), ids[0])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := &EntityWrittenEvent{
		EntityName: r.def.EntityName(),
		Operation:  OperationDelete,
		IDs:        deleted,
		WrittenAt:  r.now(),
	}
	r.publish(ctx, event)
	return event, nil
}

func (r *Repository) write(ctx context.Context, op WriteOperation, payloads []Payload) (*EntityWrittenEvent, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: nothing to write", ErrInvalidPayload)
	}

	now := r.now()
	stmts := make([]statement, 0, len(payloads))
	ids := make([]uuid.UUID, 0, len(payloads))
	written := make([]Payload, 0, len(payloads))
	for i, p := range payloads {
		st, id, normalized, err := r.prepare(op, p, now)
		if err != nil {
			return nil, fmt.Errorf("%s payload %d: %w", r.def.EntityName(), i, err)
		}
		stmts = append(stmts, st)
		ids = append(ids, id)
		written = append(written, normalized)
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		for i, st := range stmts {
			res, err := tx.ExecContext(ctx, st.query, st.args...)
			if err != nil {
				return err
			}
			if op != OperationUpdate {
				continue
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s %s", ErrNotFound, r.def.EntityName(), ids[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := &EntityWrittenEvent{
		EntityName: r.def.EntityName(),
		Operation:  op,
		IDs:        ids,
		Payloads:   written,
		WrittenAt:  now,
	}
	r.publish(ctx, event)
	return event, nil
}

// prepare validates one payload and renders its statement.
func (r *Repository) prepare(op WriteOperation, p Payload, now time.Time) (statement, uuid.UUID, Payload, error) {
	fields := r.def.Fields()
	pk := r.def.PrimaryKey()

	values := make(map[string]any, len(p))
	for prop, raw := range p {
		f, ok := fields.Get(prop)
		if !ok {
			return statement{}, uuid.Nil, nil, fmt.Errorf("%w: unknown property %q", ErrInvalidPayload, prop)
		}
		if prop == CreatedAtProperty || prop == UpdatedAtProperty {
			return statement{}, uuid.Nil, nil, fmt.Errorf("%w: %s is read-only", ErrInvalidPayload, prop)
		}
		v, err := convertValue(f, raw)
		if err != nil {
			return statement{}, uuid.Nil, nil, err
		}
		if v == nil && f.Is(Required) {
			return statement{}, uuid.Nil, nil, fmt.Errorf("%w: %s is required", ErrInvalidPayload, prop)
		}
		values[prop] = v
	}

	var id uuid.UUID
	if v, ok := values[pk.PropertyName].(uuid.UUID); ok {
		id = v
	} else if op == OperationUpdate {
		return statement{}, uuid.Nil, nil, fmt.Errorf("%w: %s is required for update", ErrInvalidPayload, pk.PropertyName)
	} else {
		id = uuid.New()
		values[pk.PropertyName] = id
	}

	if op != OperationUpdate {
		for _, f := range fields.All() {
			if !f.Is(Required) || f == pk || f.PropertyName == CreatedAtProperty {
				continue
			}
			if _, ok := values[f.PropertyName]; !ok {
				return statement{}, uuid.Nil, nil, fmt.Errorf("%w: %s is required", ErrInvalidPayload, f.PropertyName)
			}
		}
	}

	normalized := make(Payload, len(values))
	for k, v := range values {
		if u, ok := v.(uuid.UUID); ok {
			v = u.String()
		}
		normalized[k] = v
	}

	var st statement
	switch op {
	case OperationUpdate:
		st = r.renderUpdate(values, id, now)
	default:
		st = r.renderInsert(values, now, op == OperationUpsert)
	}
	return st, id, normalized, nil
}

func (r *Repository) renderInsert(values map[string]any, now time.Time, upsert bool) statement {
	var cols, params, updates []string
	var args []any
	for _, f := range r.def.Fields().All() {
		v, ok := values[f.PropertyName]
		if f.PropertyName == CreatedAtProperty {
			v, ok = now, true
		}
		if !ok {
			continue
		}
		args = append(args, v)
		cols = append(cols, r.column(f))
		params = append(params, fmt.Sprintf("$%d", len(args)))
		if f != r.def.PrimaryKey() && f.PropertyName != CreatedAtProperty {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", r.column(f), r.column(f)))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table(), strings.Join(cols, ", "), strings.Join(params, ", "))
	if upsert {
		updated, _ := r.def.Fields().Get(UpdatedAtProperty)
		created, _ := r.def.Fields().Get(CreatedAtProperty)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", r.column(updated), r.column(created)))
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", r.column(r.def.PrimaryKey()), strings.Join(updates, ", "))
	}
	return statement{query: query, args: args}
}

func (r *Repository) renderUpdate(values map[string]any, id uuid.UUID, now time.Time) statement {
	var sets []string
	var args []any
	for _, f := range r.def.Fields().All() {
		if f == r.def.PrimaryKey() {
			continue
		}
		v, ok := values[f.PropertyName]
		if f.PropertyName == UpdatedAtProperty {
			v, ok = now, true
		}
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", r.column(f), len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", r.table(), strings.Join(sets, ", "), r.column(r.def.PrimaryKey()), len(args))
	return statement{query: query, args: args}
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) publish(ctx context.Context, event *EntityWrittenEvent) {
	metrics.EntityWrites.WithLabelValues(event.EntityName, string(event.Operation)).Add(float64(len(event.IDs)))
	if err := r.publisher.PublishWritten(ctx, event); err != nil {
		log.Printf("[DAL] Failed to publish %s event for %s: %v", event.Operation, event.EntityName, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(event.EntityName).Inc()
}
