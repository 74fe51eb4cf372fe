// Package store reads and writes per-subject record files laid out as
// <root>/<name>/<name>.json. Each file holds a JSON array of records keyed
// by (item, name); acquisition tools and ubotrace share the same files.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
)

// TimestampLayout is the queried_at format used in record files
const TimestampLayout = "20060102_150405"

var (
	// ErrRecordNotFound is returned when no record matches the item and name
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidName is returned for names that cannot be used as a directory
	ErrInvalidName = errors.New("invalid subject name")
)

// Record is one result stored in a subject's record file
type Record struct {
	Item       string          `json:"item"`
	URL        string          `json:"url,omitempty"`
	Name       string          `json:"name"`
	RetURL     string          `json:"ret_url,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Screenshot string          `json:"screenshot,omitempty"`
	QueriedAt  string          `json:"queried_at,omitempty"`
}

// LoadRecords reads a record file. A missing file yields no records and a
// file holding a single object yields one record.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []Record{}, nil
	}

	switch trimmed[0] {
	case '[':
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return records, nil
	case '{':
		var record Record
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return []Record{record}, nil
	default:
		return nil, fmt.Errorf("decode %s: expected a JSON array or object", path)
	}
}

// UpsertRecord replaces the first record with the same (item, name) or
// appends when there is none. The input slice is not modified.
func UpsertRecord(records []Record, record Record) []Record {
	updated := make([]Record, 0, len(records)+1)
	found := false
	for _, r := range records {
		if !found && r.Item == record.Item && r.Name == record.Name {
			updated = append(updated, record)
			found = true
			continue
		}
		updated = append(updated, r)
	}
	if !found {
		updated = append(updated, record)
	}
	return updated
}

// WriteRecords overwrites path with records as indented JSON, keeping
// non-ASCII text readable. The file is replaced atomically.
func WriteRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".records-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Store locates subject record files under a root directory
type Store struct {
	root         string
	item         string
	fallbackItem string
}

// NewStore creates a store from source configuration
func NewStore(cfg model.SourceConfig) *Store {
	return &Store{
		root:         model.ExpandHome(cfg.RecordsDir),
		item:         cfg.Item,
		fallbackItem: cfg.FallbackItem,
	}
}

// Root returns the records directory
func (s *Store) Root() string {
	return s.root
}

// Path returns the record file for a subject
func (s *Store) Path(name string) (string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" || clean == "." || clean == ".." || strings.ContainsAny(clean, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.root, clean, clean+".json"), nil
}

// Find returns the subject's acquisition record, trying the configured item
// first and the fallback item second.
func (s *Store) Find(name string) (*Record, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("record file %s: %w", path, err)
	}

	records, err := LoadRecords(path)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	for _, item := range []string{s.item, s.fallbackItem} {
		if item == "" {
			continue
		}
		for i := range records {
			if records[i].Item == item && records[i].Name == name {
				return &records[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: item=%s name=%s in %s", ErrRecordNotFound, s.item, name, path)
}

// CalculatorInput loads the ownership payload stored in the subject's
// acquisition record under data.calculator_input.
func (s *Store) CalculatorInput(name string) (*model.Payload, *Record, error) {
	record, err := s.Find(name)
	if err != nil {
		return nil, nil, err
	}
	if len(record.Data) == 0 {
		return model.NewPayload(), record, nil
	}

	payload, err := model.ParsePayload(record.Data)
	if err != nil {
		return nil, record, fmt.Errorf("record %s/%s: %w", record.Item, name, err)
	}
	return payload, record, nil
}

// Save upserts record into the subject's record file
func (s *Store) Save(record Record) (string, error) {
	path, err := s.Path(record.Name)
	if err != nil {
		return "", err
	}

	records, err := LoadRecords(path)
	if err != nil {
		return "", err
	}
	if err := WriteRecords(path, UpsertRecord(records, record)); err != nil {
		return "", err
	}
	return path, nil
}
