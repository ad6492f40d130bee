package history

import (
	"context"
	"fmt"
	"time"

	"github.com/hollis-lab/spectra-core/internal/infrastructure/database"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Change sources recorded in parameter_history.
const (
	// SourceRefresh marks values observed during a state refresh.
	SourceRefresh = "refresh"

	// SourceCommand marks values staged by an accepted write command.
	SourceCommand = "command"

	// SourceDiscovery marks values captured during initial discovery.
	SourceDiscovery = "discovery"
)

// ParameterChange is one recorded parameter value.
type ParameterChange struct {
	ID        int64     `json:"id"`
	UnitID    string    `json:"unit_id"`
	Channel   string    `json:"channel"`
	Address   int       `json:"address"`
	Value     float64   `json:"value"`
	Source    string    `json:"source"`
	ChangedAt time.Time `json:"changed_at"`
}

// CommandRecord is one received write command and its outcome.
type CommandRecord struct {
	ID         int64     `json:"id"`
	CommandID  string    `json:"command_id"`
	UnitID     string    `json:"unit_id"`
	Channel    string    `json:"channel"`
	Address    int       `json:"address"`
	Value      float64   `json:"value"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Repository stores parameter changes and command outcomes in SQLite.
type Repository struct {
	db *database.DB
}

// NewRepository creates a repository over an open database connection.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *Repository: Repository instance ready for use
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// RecordParameter inserts one parameter change.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - change: The change to persist (ID and ChangedAt are assigned here)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) RecordParameter(ctx context.Context, change ParameterChange) error {
	if change.UnitID == "" {
		return fmt.Errorf("unit id is required")
	}
	if change.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if change.Source == "" {
		change.Source = SourceRefresh
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO parameter_history (unit_id, channel, address, value, source, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		change.UnitID,
		change.Channel,
		change.Address,
		change.Value,
		change.Source,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting parameter history: %w", err)
	}

	return nil
}

// RecordCommand inserts one command outcome.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rec: The command record to persist (ID and ReceivedAt are assigned here)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) RecordCommand(ctx context.Context, rec CommandRecord) error {
	if rec.UnitID == "" {
		return fmt.Errorf("unit id is required")
	}
	if rec.CommandID == "" {
		return fmt.Errorf("command id is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (command_id, unit_id, channel, address, value, outcome, detail, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CommandID,
		rec.UnitID,
		rec.Channel,
		rec.Address,
		rec.Value,
		rec.Outcome,
		rec.Detail,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}

	return nil
}

// Parameters returns recent parameter changes for a unit, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - unitID: Unit identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []ParameterChange: Entries ordered by changed_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *Repository) Parameters(ctx context.Context, unitID string, limit int) ([]ParameterChange, error) {
	if unitID == "" {
		return nil, fmt.Errorf("unit id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, unit_id, channel, address, value, source, changed_at
		 FROM parameter_history
		 WHERE unit_id = ?
		 ORDER BY changed_at DESC, id DESC
		 LIMIT ?`,
		unitID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying parameter history: %w", err)
	}
	defer rows.Close()

	entries := make([]ParameterChange, 0, limit)
	for rows.Next() {
		var entry ParameterChange
		var changedAt int64

		if err := rows.Scan(&entry.ID, &entry.UnitID, &entry.Channel, &entry.Address,
			&entry.Value, &entry.Source, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning parameter history: %w", err)
		}
		entry.ChangedAt = time.Unix(changedAt, 0).UTC()

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating parameter history: %w", err)
	}

	return entries, nil
}

// Commands returns recent command records for a unit, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - unitID: Unit identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []CommandRecord: Entries ordered by received_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *Repository) Commands(ctx context.Context, unitID string, limit int) ([]CommandRecord, error) {
	if unitID == "" {
		return nil, fmt.Errorf("unit id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, command_id, unit_id, channel, address, value, outcome, detail, received_at
		 FROM command_log
		 WHERE unit_id = ?
		 ORDER BY received_at DESC, id DESC
		 LIMIT ?`,
		unitID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := make([]CommandRecord, 0, limit)
	for rows.Next() {
		var entry CommandRecord
		var detail *string
		var receivedAt int64

		if err := rows.Scan(&entry.ID, &entry.CommandID, &entry.UnitID, &entry.Channel,
			&entry.Address, &entry.Value, &entry.Outcome, &detail, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}
		if detail != nil {
			entry.Detail = *detail
		}
		entry.ReceivedAt = time.Unix(receivedAt, 0).UTC()

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
