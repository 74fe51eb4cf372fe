package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/ubotrace/internal/model"
	"github.com/ppiankov/ubotrace/internal/store"
)

// Source acquires the raw ownership payload for a subject
type Source interface {
	Name() string
	Acquire(ctx context.Context, subject string) (*model.Payload, error)
}

// PayloadFileSource reads one payload file regardless of subject. The file
// may hold a bare payload or a crawl result wrapping it in calculator_input.
type PayloadFileSource struct {
	path string
}

// NewPayloadFileSource creates a source reading path
func NewPayloadFileSource(path string) *PayloadFileSource {
	return &PayloadFileSource{path: path}
}

// Name returns the source name used for rate limiting and reports
func (s *PayloadFileSource) Name() string {
	return "file"
}

// Acquire reads and decodes the payload file
func (s *PayloadFileSource) Acquire(ctx context.Context, subject string) (*model.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	payload, err := model.ParsePayload(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return payload, nil
}

// RecordSource reads the calculator input stored in a subject's record file
type RecordSource struct {
	store *store.Store
}

// NewRecordSource creates a source over a record store
func NewRecordSource(st *store.Store) *RecordSource {
	return &RecordSource{store: st}
}

// Name returns the source name used for rate limiting and reports
func (s *RecordSource) Name() string {
	return "records"
}

// Acquire loads the subject's stored calculator input
func (s *RecordSource) Acquire(ctx context.Context, subject string) (*model.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, _, err := s.store.CalculatorInput(subject)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
