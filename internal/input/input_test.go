package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSVWithHeader(t *testing.T) {
	path := writeTestFile(t, "names.csv", "name,birth_year\nJohn Smith,1980\nJane Citizen,\n")

	queries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, model.SearchQuery{Name: "John Smith", BirthYear: 1980}, queries[0])
	assert.Equal(t, model.SearchQuery{Name: "Jane Citizen"}, queries[1])
}

func TestLoad_CSVHeaderless(t *testing.T) {
	path := writeTestFile(t, "names.csv", "John Smith\nJane Citizen\n")

	queries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "John Smith", queries[0].Name)
}

func TestLoad_CSVInvalidYearIgnored(t *testing.T) {
	path := writeTestFile(t, "names.csv", "name,birth_year\nJohn Smith,abcd\nJane Citizen,1850\n")

	queries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Zero(t, queries[0].BirthYear)
	assert.Zero(t, queries[1].BirthYear)
}

func TestLoad_Text(t *testing.T) {
	path := writeTestFile(t, "names.txt", "John Smith,1980\n\n  Jane Citizen  \n")

	queries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, model.SearchQuery{Name: "John Smith", BirthYear: 1980}, queries[0])
	assert.Equal(t, "Jane Citizen", queries[1].Name)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeTestFile(t, "names.pdf", "John Smith\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}

func TestParseInline(t *testing.T) {
	queries := ParseInline("john smith; jane citizen,1985 ;bob brown")
	require.Len(t, queries, 3)
	assert.Equal(t, "john smith", queries[0].Name)
	assert.Equal(t, model.SearchQuery{Name: "jane citizen", BirthYear: 1985}, queries[1])
	assert.Equal(t, "bob brown", queries[2].Name)
}

func TestClean_SkipsShortAndEmptyNames(t *testing.T) {
	queries := Clean([]model.SearchQuery{
		{Name: ""},
		{Name: "   "},
		{Name: "J"},
		{Name: "Jo"},
	})
	require.Len(t, queries, 1)
	assert.Equal(t, "Jo", queries[0].Name)
}

func TestClean_TruncatesLongNames(t *testing.T) {
	long := strings.Repeat("ab ", 50) // 150 runes
	queries := Clean([]model.SearchQuery{{Name: long}})
	require.Len(t, queries, 1)
	assert.LessOrEqual(t, len([]rune(queries[0].Name)), 100)
}

func TestClean_DedupeCaseInsensitive(t *testing.T) {
	queries := Clean([]model.SearchQuery{
		{Name: "John Smith"},
		{Name: "JOHN SMITH"},
		{Name: "john smith", BirthYear: 1980},
		{Name: "Jane Citizen"},
	})
	require.Len(t, queries, 3)
	assert.Equal(t, "John Smith", queries[0].Name)
	assert.Equal(t, 1980, queries[1].BirthYear)
	assert.Equal(t, "Jane Citizen", queries[2].Name)
}
