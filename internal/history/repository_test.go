package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hollis-lab/spectra-core/internal/infrastructure/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestRecordParameter_AndQuery(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	changes := []ParameterChange{
		{UnitID: "spg-red", Channel: "wavelength", Address: 0, Value: 500.0, Source: SourceDiscovery},
		{UnitID: "spg-red", Channel: "wavelength", Address: 0, Value: 632.8, Source: SourceCommand},
		{UnitID: "spg-blue", Channel: "slit_width", Address: 1, Value: 100.0, Source: SourceRefresh},
	}
	for _, c := range changes {
		if err := repo.RecordParameter(ctx, c); err != nil {
			t.Fatalf("RecordParameter(%v) error = %v", c, err)
		}
	}

	got, err := repo.Parameters(ctx, "spg-red", 0)
	if err != nil {
		t.Fatalf("Parameters() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Parameters) = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Value != 632.8 || got[0].Source != SourceCommand {
		t.Errorf("Parameters[0] = %+v, want latest command entry", got[0])
	}
	if got[1].Value != 500.0 {
		t.Errorf("Parameters[1].Value = %v, want 500", got[1].Value)
	}
	if got[0].ChangedAt.IsZero() {
		t.Error("ChangedAt not populated")
	}
}

func TestRecordParameter_Validation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.RecordParameter(ctx, ParameterChange{Channel: "wavelength"}); err == nil {
		t.Error("RecordParameter without unit id: error = nil, want error")
	}
	if err := repo.RecordParameter(ctx, ParameterChange{UnitID: "spg-red"}); err == nil {
		t.Error("RecordParameter without channel: error = nil, want error")
	}
}

func TestRecordCommand_AndQuery(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	recs := []CommandRecord{
		{CommandID: "cmd-1", UnitID: "spg-red", Channel: "wavelength", Value: 632.8, Outcome: "accepted"},
		{CommandID: "cmd-2", UnitID: "spg-red", Channel: "grating", Value: 9, Outcome: "failed", Detail: "status 20268"},
	}
	for _, rec := range recs {
		if err := repo.RecordCommand(ctx, rec); err != nil {
			t.Fatalf("RecordCommand(%v) error = %v", rec, err)
		}
	}

	got, err := repo.Commands(ctx, "spg-red", 10)
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Commands) = %d, want 2", len(got))
	}
	if got[0].CommandID != "cmd-2" {
		t.Errorf("Commands[0].CommandID = %q, want cmd-2 (newest first)", got[0].CommandID)
	}
	if got[0].Detail != "status 20268" {
		t.Errorf("Commands[0].Detail = %q, want failure detail", got[0].Detail)
	}
	if got[1].Detail != "" {
		t.Errorf("Commands[1].Detail = %q, want empty", got[1].Detail)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, defaultHistoryLimit},
		{-5, defaultHistoryLimit},
		{10, 10},
		{maxHistoryLimit + 1, maxHistoryLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
