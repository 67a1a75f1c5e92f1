package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronvstory/ReadySearch/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// resultsPage mirrors the site's usual render: one pipe-separated cell per
// person row, header row without the labeled colon.
func resultsPage() Surface {
	return Surface{
		URL: "https://readysearch.com.au/products?person",
		Tables: [][][]string{{
			{"Name | Date of Birth | Location"},
			{"JOHN MICHAEL SMITH | Date of Birth: 15/03/1980 | Sydney NSW"},
			{"JON SMITH | Date of Birth: 02/11/1975 | Melbourne VIC"},
		}},
		BodyText: "Search results\nJOHN MICHAEL SMITH Date of Birth: 15/03/1980",
	}
}

func TestExtractor_Extract_TableRows(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	recs, err := e.Extract(resultsPage())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "JOHN MICHAEL SMITH", recs[0].Name)
	assert.Equal(t, "15/03/1980", recs[0].DateOfBirth)
	assert.Equal(t, "Sydney NSW", recs[0].Location)
	assert.Equal(t, "john michael smith", recs[0].Normalized)
	assert.Contains(t, recs[0].RawText, "JOHN MICHAEL SMITH")

	assert.Equal(t, "JON SMITH", recs[1].Name)
	assert.Equal(t, "02/11/1975", recs[1].DateOfBirth)
}

func TestExtractor_Extract_MultiCellRow(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	s := Surface{
		Tables: [][][]string{{
			{"JANE DOE", "Date of Birth: 01/01/1990", "Perth WA"},
		}},
		BodyText: "results",
	}
	recs, err := e.Extract(s)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "JANE DOE", recs[0].Name)
	assert.Equal(t, "01/01/1990", recs[0].DateOfBirth)
	assert.Equal(t, "Perth WA", recs[0].Location)
}

func TestExtractor_Extract_ContainerFallback(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	s := Surface{
		Containers: []string{
			"Sarah Connor\nDate of Birth: 05/05/1985\n12 Pine Street Sydney NSW",
			"Sarah Connor\nDate of Birth: 05/05/1985\n12 Pine Street Sydney NSW",
			"Navigation",
		},
		BodyText: "people search",
	}
	recs, err := e.Extract(s)
	require.NoError(t, err)
	require.Len(t, recs, 1, "overlapping containers must deduplicate")

	assert.Equal(t, "Sarah Connor", recs[0].Name)
	assert.Equal(t, "05/05/1985", recs[0].DateOfBirth)
	assert.Equal(t, "12 Pine Street Sydney NSW", recs[0].Location)
}

func TestExtractor_Extract_TableBeatsContainer(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	s := resultsPage()
	s.Containers = []string{"Container Person\nDate of Birth: 09/09/1999"}

	recs, err := e.Extract(s)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "JOHN MICHAEL SMITH", recs[0].Name)
}

func TestExtractor_Extract_NoResultsShortCircuit(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	s := Surface{
		Tables:   [][][]string{{{"JOHN SMITH | Date of Birth: 15/03/1980"}}},
		BodyText: "No records found for your search.",
	}
	recs, err := e.Extract(s)
	require.NoError(t, err)
	assert.Empty(t, recs, "no-results marker wins over any table content")
}

func TestExtractor_Extract_NothingRecordShaped(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	s := Surface{BodyText: "Welcome to the people search portal."}
	recs, err := e.Extract(s)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExtractor_Extract_UnparseableRows(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	// The label proves person rows rendered, yet no strategy can read them.
	s := Surface{BodyText: "???? Date of Birth: ???? mangled markup"}
	_, err := e.Extract(s)
	require.Error(t, err)
	assert.True(t, resilience.IsExtractionFailure(err))
}

func TestExtractor_Extract_EmptySurface(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	_, err := e.Extract(Surface{})
	require.Error(t, err)
	assert.True(t, resilience.IsExtractionFailure(err))
}

func TestExtractor_NoResults_WordBoundaries(t *testing.T) {
	t.Parallel()
	e := NewExtractor(nil, nil)

	assert.True(t, e.NoResults("Sorry, no records found."))
	assert.True(t, e.NoResults("0 results"))
	assert.False(t, e.NoResults("Showing 10 results"))
	assert.False(t, e.NoResults(""))
}

func TestTableRecords_SkipsTinyTables(t *testing.T) {
	t.Parallel()

	s := Surface{Tables: [][][]string{{{"a"}}}}
	assert.Empty(t, TableRecords(s))
}

func TestContainerRecords_SkipsNonNames(t *testing.T) {
	t.Parallel()

	s := Surface{Containers: []string{"123 results\nnoise", "<div>"}}
	assert.Empty(t, ContainerRecords(s))
}
