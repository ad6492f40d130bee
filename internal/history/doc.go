// Package history persists spectrograph parameter changes and command
// outcomes to SQLite.
//
// Every refresh cycle and accepted write produces parameter_history rows;
// every received command produces a command_log row. The diagnostics API
// reads both tables to answer "what did this unit do overnight".
//
// Usage:
//
//	repo := history.NewRepository(db)
//	err := repo.RecordParameter(ctx, history.ParameterChange{
//	    UnitID:  "spg-red",
//	    Channel: "wavelength",
//	    Value:   632.8,
//	    Source:  history.SourceCommand,
//	})
package history
