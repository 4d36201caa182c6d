package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxgate/callgateway/internal/core"
)

// DBTX is the minimal surface the Store needs from a pgx connection, pool, or
// transaction, so callers can pass any of the three interchangeably.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner is implemented by *pgxpool.Pool and *pgx.Conn: anything that can
// start a transaction. Store requires it because add_message and
// end_conversation must run inside one.
type Beginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the Conversation Journal's Postgres-backed implementation.
type Store struct {
	db Beginner
}

// New constructs a Store over an already-connected pool or connection. Run
// the migration runner (see migrations.go) before first use.
func New(db Beginner) *Store {
	return &Store{db: db}
}

// Open is a convenience constructor that dials a pgxpool.Pool from a DSN.
func Open(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, core.NewError("journal.Open", core.ErrConnection, "connect to journal database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, core.NewError("journal.Open", core.ErrConnection, "ping journal database", err)
	}
	return New(pool), pool, nil
}

func marshalMeta(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// StartCall records a newly admitted call.
func (s *Store) StartCall(ctx context.Context, c Call) (int64, error) {
	meta, err := marshalMeta(c.Metadata)
	if err != nil {
		return 0, core.NewError("journal.StartCall", core.ErrValidation, "marshal metadata", err)
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO calls (call_id, caller_number, called_number, trunk_name, room_name, status, start_time, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id
	`, c.CallID, c.CallerNumber, c.CalledNumber, c.TrunkName, c.RoomName, CallInitializing, c.StartTime, meta).Scan(&id)
	if err != nil {
		return 0, core.NewError("journal.StartCall", core.ErrServerError, "insert call", err)
	}
	return id, nil
}

// EndCall updates a call's terminal status, end time, and optional reason.
func (s *Store) EndCall(ctx context.Context, callID string, status CallStatus, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE calls SET status = $2, end_time = now(), end_reason = $3
		WHERE call_id = $1
	`, callID, status, reason)
	if err != nil {
		return core.NewError("journal.EndCall", core.ErrServerError, "update call", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError("journal.EndCall", core.ErrNotFound, fmt.Sprintf("call %q not found", callID), nil)
	}
	return nil
}

// MarkAnswered stamps a call's answer_time and moves it to ACTIVE.
func (s *Store) MarkAnswered(ctx context.Context, callID string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE calls SET status = $2, answer_time = $3 WHERE call_id = $1
	`, callID, CallActive, at)
	if err != nil {
		return core.NewError("journal.MarkAnswered", core.ErrServerError, "update call", err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewError("journal.MarkAnswered", core.ErrNotFound, fmt.Sprintf("call %q not found", callID), nil)
	}
	return nil
}

// StartConversation opens the (at most one) conversation for a call.
func (s *Store) StartConversation(ctx context.Context, callID, conversationID, model, systemPrompt string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO conversations (conversation_id, call_id, model, system_prompt, started_at, created_at)
		SELECT $1, c.id, $3, $4, now(), now() FROM calls c WHERE c.call_id = $2
		RETURNING id
	`, conversationID, callID, model, systemPrompt).Scan(&id)
	if err != nil {
		return 0, core.NewError("journal.StartConversation", core.ErrServerError, "insert conversation", err)
	}
	return id, nil
}

// EndConversation closes a conversation and triggers metrics recomputation
// (§4.7), all inside one transaction.
func (s *Store) EndConversation(ctx context.Context, conversationID string, summary, topic string) (ConversationMetrics, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ConversationMetrics{}, core.NewError("journal.EndConversation", core.ErrServerError, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	var convoPK int64
	if err := tx.QueryRow(ctx, `
		UPDATE conversations SET ended_at = now(), summary = $2, topic = $3
		WHERE conversation_id = $1
		RETURNING id
	`, conversationID, summary, topic).Scan(&convoPK); err != nil {
		return ConversationMetrics{}, core.NewError("journal.EndConversation", core.ErrNotFound, "conversation not found", err)
	}

	messages, err := loadMessages(ctx, tx, convoPK)
	if err != nil {
		return ConversationMetrics{}, err
	}

	metrics := computeMetrics(convoPK, messages)
	if err := upsertMetrics(ctx, tx, metrics); err != nil {
		return ConversationMetrics{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ConversationMetrics{}, core.NewError("journal.EndConversation", core.ErrServerError, "commit tx", err)
	}
	return metrics, nil
}

// AddMessageInput is add_message's argument set (§4.7).
type AddMessageInput struct {
	ConversationID string
	Role           Role
	Content        string
	ProcessingMs   *int64
	STTMeta        *STTMeta
	LLMMeta        *LLMMeta
	TTSMeta        *TTSMeta
}

// AddMessage appends one Message, assigning the next sequence_number for its
// conversation inside the same transaction (invariant: gap-free, 1..N).
func (s *Store) AddMessage(ctx context.Context, in AddMessageInput) (Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrServerError, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	var convoPK int64
	if err := tx.QueryRow(ctx, `SELECT id FROM conversations WHERE conversation_id = $1`, in.ConversationID).Scan(&convoPK); err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrNotFound, "conversation not found", err)
	}

	var nextSeq int64
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM messages WHERE conversation_id = $1
	`, convoPK).Scan(&nextSeq); err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrServerError, "compute sequence_number", err)
	}

	sttJSON, err := jsonOrNil(in.STTMeta)
	if err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrValidation, "marshal stt_meta", err)
	}
	llmJSON, err := jsonOrNil(in.LLMMeta)
	if err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrValidation, "marshal llm_meta", err)
	}
	ttsJSON, err := jsonOrNil(in.TTSMeta)
	if err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrValidation, "marshal tts_meta", err)
	}

	msg := Message{
		ConversationID: convoPK,
		SequenceNumber: nextSeq,
		Role:           in.Role,
		Content:        in.Content,
		ProcessingMs:   in.ProcessingMs,
		STTMeta:        in.STTMeta,
		LLMMeta:        in.LLMMeta,
		TTSMeta:        in.TTSMeta,
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sequence_number, role, content, processing_ms, stt_meta, llm_meta, tts_meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, created_at
	`, convoPK, nextSeq, in.Role, in.Content, in.ProcessingMs, sttJSON, llmJSON, ttsJSON).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrServerError, "insert message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, core.NewError("journal.AddMessage", core.ErrServerError, "commit tx", err)
	}
	return msg, nil
}

// LogEventInput is log_event's argument set (§4.7, §7).
type LogEventInput struct {
	Type           string
	Severity       EventSeverity
	Message        string
	Component      string
	CallID         string
	ConversationID string
	Metadata       map[string]any
	StackTrace     string
}

// LogEvent journals one SystemEvent and returns any marshal or insert error.
// Call sites already on an error path (§7), such as the orchestrator's turn
// failure handling, log that error rather than propagate it.
func (s *Store) LogEvent(ctx context.Context, in LogEventInput) error {
	meta, err := marshalMeta(in.Metadata)
	if err != nil {
		return core.NewError("journal.LogEvent", core.ErrValidation, "marshal metadata", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO system_events (type, severity, message, component, call_id, conversation_id, metadata, stack_trace, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, in.Type, in.Severity, in.Message, in.Component, in.CallID, in.ConversationID, meta, in.StackTrace)
	if err != nil {
		return core.NewError("journal.LogEvent", core.ErrServerError, "insert system_event", err)
	}
	return nil
}

// Cleanup implements the retention policy (§4.7): deletes Calls older than
// retentionDays (cascading to their Conversations and Messages) and
// SystemEvents older than the same horizon.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, core.NewError("journal.Cleanup", core.ErrServerError, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	horizon := fmt.Sprintf("%d days", retentionDays)

	tag, err := tx.Exec(ctx, `DELETE FROM calls WHERE created_at < now() - $1::interval`, horizon)
	if err != nil {
		return 0, core.NewError("journal.Cleanup", core.ErrServerError, "delete expired calls", err)
	}
	deleted := tag.RowsAffected()

	if _, err := tx.Exec(ctx, `DELETE FROM system_events WHERE created_at < now() - $1::interval`, horizon); err != nil {
		return 0, core.NewError("journal.Cleanup", core.ErrServerError, "delete expired system_events", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, core.NewError("journal.Cleanup", core.ErrServerError, "commit tx", err)
	}
	return deleted, nil
}

func jsonOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case *STTMeta:
		if m == nil {
			return nil, nil
		}
	case *LLMMeta:
		if m == nil {
			return nil, nil
		}
	case *TTSMeta:
		if m == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
