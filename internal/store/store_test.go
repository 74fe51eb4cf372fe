package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ubotrace/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := model.DefaultConfig().Source
	cfg.RecordsDir = t.TempDir()
	return NewStore(cfg)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadRecords(t *testing.T) {
	dir := t.TempDir()

	records, err := LoadRecords(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, records)

	single := filepath.Join(dir, "single.json")
	writeFile(t, single, `{"item": "QCC_公司查询", "name": "A公司"}`)
	records, err = LoadRecords(single)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A公司", records[0].Name)

	list := filepath.Join(dir, "list.json")
	writeFile(t, list, `[{"item": "x", "name": "a"}, {"item": "y", "name": "b"}]`)
	records, err = LoadRecords(list)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{not json`)
	_, err = LoadRecords(bad)
	assert.Error(t, err)

	scalar := filepath.Join(dir, "scalar.json")
	writeFile(t, scalar, `42`)
	_, err = LoadRecords(scalar)
	assert.Error(t, err)
}

func TestUpsertRecord(t *testing.T) {
	records := []Record{
		{Item: "a", Name: "x", QueriedAt: "1"},
		{Item: "b", Name: "x", QueriedAt: "2"},
	}

	updated := UpsertRecord(records, Record{Item: "a", Name: "x", QueriedAt: "3"})
	require.Len(t, updated, 2)
	assert.Equal(t, "3", updated[0].QueriedAt)
	assert.Equal(t, "1", records[0].QueriedAt, "input must not be modified")

	updated = UpsertRecord(records, Record{Item: "a", Name: "y"})
	require.Len(t, updated, 3)
	assert.Equal(t, "y", updated[2].Name)
}

func TestWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "A公司", "A公司.json")

	err := WriteRecords(path, []Record{{
		Item: "UBO_受益所有人分析",
		Name: "A公司",
		Data: json.RawMessage(`{"note":"<b>&"}`),
	}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "[\n  {"), "expected two-space indentation, got %s", text)
	assert.Contains(t, text, "UBO_受益所有人分析", "non-ASCII must not be escaped")
	assert.Contains(t, text, "<b>&")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Path(t *testing.T) {
	s := testStore(t)

	path, err := s.Path("A公司")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "A公司", "A公司.json"), path)

	for _, name := range []string{"", "  ", "..", "a/b", `a\b`} {
		_, err := s.Path(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestStore_Find(t *testing.T) {
	s := testStore(t)
	path, _ := s.Path("A公司")
	writeFile(t, path, `[
		{"item": "AMAC_证监会搜索", "name": "A公司"},
		{"item": "QCC_企查查公司查询", "name": "A公司", "queried_at": "20250101_120000"}
	]`)

	record, err := s.Find("A公司")
	require.NoError(t, err)
	assert.Equal(t, "QCC_企查查公司查询", record.Item, "fallback item should be used")

	writeFile(t, path, `[
		{"item": "QCC_企查查公司查询", "name": "A公司"},
		{"item": "QCC_公司查询", "name": "A公司"}
	]`)
	record, err = s.Find("A公司")
	require.NoError(t, err)
	assert.Equal(t, "QCC_公司查询", record.Item, "primary item should win")
}

func TestStore_Find_TrimsName(t *testing.T) {
	s := testStore(t)
	path, _ := s.Path("A公司")
	writeFile(t, path, `[{"item": "QCC_公司查询", "name": "A公司"}]`)

	for _, name := range []string{" A公司", "A公司\n", "\tA公司 "} {
		record, err := s.Find(name)
		require.NoError(t, err, "%q", name)
		assert.Equal(t, "A公司", record.Name)
	}
}

func TestStore_Find_Errors(t *testing.T) {
	s := testStore(t)

	_, err := s.Find("missing")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	path, _ := s.Path("B公司")
	writeFile(t, path, `[{"item": "other", "name": "B公司"}]`)
	_, err = s.Find("B公司")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_CalculatorInput(t *testing.T) {
	s := testStore(t)
	path, _ := s.Path("A公司")
	writeFile(t, path, `{
		"item": "QCC_公司查询",
		"name": "A公司",
		"data": {
			"legal_representative": "张三",
			"calculator_input": {
				"direct_shareholders": {"张三": 40, "B公司": 60},
				"entity_structure": {"B公司": {"李四": 50, "王五": 50}}
			}
		}
	}`)

	payload, record, err := s.CalculatorInput("A公司")
	require.NoError(t, err)
	assert.Equal(t, "QCC_公司查询", record.Item)
	assert.Equal(t, 2, payload.DirectShareholders.Len())

	holders, ok := payload.EntityStructure.Get("B公司")
	require.True(t, ok)
	assert.Equal(t, 2, holders.Len())
}

func TestStore_CalculatorInput_NoData(t *testing.T) {
	s := testStore(t)
	path, _ := s.Path("A公司")
	writeFile(t, path, `{"item": "QCC_公司查询", "name": "A公司"}`)

	payload, _, err := s.CalculatorInput("A公司")
	require.NoError(t, err)
	assert.Equal(t, 0, payload.DirectShareholders.Len())
}

func TestStore_Save(t *testing.T) {
	s := testStore(t)
	path, _ := s.Path("A公司")
	writeFile(t, path, `{"item": "QCC_公司查询", "name": "A公司", "url": "https://example.com"}`)

	saved, err := s.Save(Record{Item: "UBO_受益所有人分析", Name: "A公司", QueriedAt: "1"})
	require.NoError(t, err)
	assert.Equal(t, path, saved)

	_, err = s.Save(Record{Item: "UBO_受益所有人分析", Name: "A公司", QueriedAt: "2"})
	require.NoError(t, err)

	records, err := LoadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://example.com", records[0].URL)
	assert.Equal(t, "2", records[1].QueriedAt)
}
