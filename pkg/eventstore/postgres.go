package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/scheduler"
)

// EventModel is the bun-mapped row shape, grounded directly on the
// teacher's internal/infrastructure/storage/models/event_model.go
// EventModel: jsonb payload, per-execution autoincrement sequence, a
// BeforeInsert hook stamping ID/CreatedAt.
type EventModel struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid"`
	ExecutionID string         `bun:"execution_id,notnull"`
	EventType   string         `bun:"event_type,notnull"`
	Sequence    int64          `bun:"sequence,notnull"`
	NodeID      string         `bun:"node_id"`
	NodeType    string         `bun:"node_type"`
	Status      string         `bun:"status"`
	Error       string         `bun:"error"`
	Payload     map[string]any `bun:"payload,type:jsonb,notnull,default:'{}'"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
}

// TableName matches the teacher's explicit TableName() method pattern.
func (EventModel) TableName() string { return "events" }

// BeforeInsert mirrors the teacher's EventModel.BeforeInsert hook: stamps
// CreatedAt and generates an ID when the caller didn't set one.
func (m *EventModel) BeforeInsert(ctx context.Context) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Payload == nil {
		m.Payload = map[string]any{}
	}
	return nil
}

// PostgresStore is a bun/postgres-backed durable Store, grounded on the
// teacher's execution_repository.go transactional write pattern: the
// sequence assignment and insert happen inside one transaction that first
// takes a per-execution advisory lock, so two concurrent Append calls for
// the same execution can never race onto the same sequence number.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore wraps an already-configured *bun.DB (dialect/driver
// selection and connection pooling are the caller's responsibility, exactly
// as in the teacher's internal/infrastructure/storage package).
func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the events table if it doesn't already exist; a
// thin stand-in for the teacher's separate migration tool (cmd/migrate),
// which this module's scope doesn't carry (see DESIGN.md).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*EventModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("eventstore: creating events table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, executionID string, e scheduler.Event) (StoredEvent, error) {
	var stored StoredEvent
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", executionID); err != nil {
			return fmt.Errorf("eventstore: locking execution sequence: %w", err)
		}
		var maxSeq int64
		err := tx.NewSelect().
			Model((*EventModel)(nil)).
			ColumnExpr("COALESCE(MAX(sequence), 0)").
			Where("execution_id = ?", executionID).
			Scan(ctx, &maxSeq)
		if err != nil {
			return fmt.Errorf("eventstore: reading max sequence: %w", err)
		}

		nextSeq := maxSeq + 1
		row := &EventModel{
			ExecutionID: executionID,
			EventType:   string(e.Type),
			Sequence:    nextSeq,
			NodeID:      string(e.NodeID),
			NodeType:    string(e.NodeType),
			Status:      e.Status,
			Error:       e.Error,
			Payload:     eventPayload(e),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("eventstore: inserting event: %w", err)
		}

		stored = StoredEvent{
			ExecutionID: executionID,
			Sequence:    nextSeq,
			Type:        e.Type,
			NodeID:      e.NodeID,
			NodeType:    e.NodeType,
			Status:      e.Status,
			Error:       e.Error,
			Payload:     row.Payload,
			CreatedAt:   row.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return StoredEvent{}, err
	}
	return stored, nil
}

func (s *PostgresStore) EventsSince(ctx context.Context, executionID string, after int64) ([]StoredEvent, error) {
	var rows []EventModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("execution_id = ? AND sequence > ?", executionID, after).
		OrderExpr("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventstore: querying events: %w", err)
	}
	return toStoredEvents(rows), nil
}

func (s *PostgresStore) AllEvents(ctx context.Context, executionID string) ([]StoredEvent, error) {
	return s.EventsSince(ctx, executionID, 0)
}

func toStoredEvents(rows []EventModel) []StoredEvent {
	out := make([]StoredEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, StoredEvent{
			ExecutionID: r.ExecutionID,
			Sequence:    r.Sequence,
			Type:        scheduler.EventType(r.EventType),
			NodeID:      diagram.NodeID(r.NodeID),
			NodeType:    diagram.NodeType(r.NodeType),
			Status:      r.Status,
			Error:       r.Error,
			Payload:     r.Payload,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}
