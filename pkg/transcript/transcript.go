// Package transcript publishes recorded chat exchanges for offline dataset
// collection. Publishing is best-effort and independent of the in-memory
// session store: nothing is ever read back into a session.
package transcript

import (
	"context"
	"encoding/csv"
	"io"
	"time"
)

// Record is one answered question as published to a sink.
type Record struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Persona   string    `json:"persona,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink receives recorded exchanges.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Record publishes one exchange.
	Record(ctx context.Context, rec Record) error

	// Close releases any resources held by the sink.
	Close() error
}

// Reader lists previously published records, oldest first.
type Reader interface {
	Records(ctx context.Context, limit int64) ([]Record, error)
}

// NopSink discards every record.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Record) error { return nil }

// Close implements Sink.
func (NopSink) Close() error { return nil }

// WriteCSV writes records with question/answer columns, the layout the
// dataset preprocessing step consumes.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"session_id", "created_at", "persona", "question", "answer"}); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.SessionID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Persona,
			rec.Question,
			rec.Answer,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
