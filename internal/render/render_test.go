package render_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/skolmap/internal/models"
	"github.com/UnknownOlympus/skolmap/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []models.EnrichedRecord {
	return []models.EnrichedRecord{
		{
			SchoolRecord: models.SchoolRecord{ID: "1", Name: "Top School", Municipality: "Uppsala", Merit: 320.0},
			Address:      "Kungsgatan 10",
			Latitude:     59.86,
			Longitude:    17.64,
		},
		{
			SchoolRecord: models.SchoolRecord{ID: "2", Name: "Mid School", Municipality: "Stockholm", Merit: 230.0},
			Address:      "Storgatan 1",
			Latitude:     59.33,
			Longitude:    18.07,
		},
		{
			SchoolRecord: models.SchoolRecord{ID: "3", Name: "Low School", Municipality: "Malmö", Merit: 150.0},
			Address:      "Lillgatan 2",
			Latitude:     55.60,
			Longitude:    13.00,
		},
	}
}

func TestWriteMeritMap(t *testing.T) {
	defer filet.CleanUp(t)

	path := filepath.Join(filet.TmpDir(t, ""), "merit.html")
	require.NoError(t, render.WriteMeritMap(path, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "leaflet")
	assert.Contains(t, content, "Top School")
	assert.Contains(t, content, "Kungsgatan 10")
	// Highest merit gets the deep-blue end of the spectrum, lowest the red end.
	assert.Contains(t, content, "#0040FF")
	assert.Contains(t, content, "#FF0000")
	assert.Contains(t, content, "Total: 3 schools mapped")
}

func TestWriteRankedMap(t *testing.T) {
	defer filet.CleanUp(t)

	path := filepath.Join(filet.TmpDir(t, ""), "ranked.html")
	require.NoError(t, render.WriteRankedMap(path, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "#1 - Top School")
	assert.Contains(t, content, "Rank: 3 of 3")
	assert.Contains(t, content, "rank-label")
}

func TestWriteMeritMap_EmptyInputIsError(t *testing.T) {
	defer filet.CleanUp(t)

	path := filepath.Join(filet.TmpDir(t, ""), "empty.html")
	err := render.WriteMeritMap(path, nil)

	require.Error(t, err)
}

func TestWriteMeritMap_EscapesRecordFields(t *testing.T) {
	defer filet.CleanUp(t)

	records := []models.EnrichedRecord{{
		SchoolRecord: models.SchoolRecord{ID: "1", Name: `<script>alert(1)</script>`, Municipality: "X", Merit: 200},
		Address:      "Y",
		Latitude:     59,
		Longitude:    17,
	}}

	path := filepath.Join(filet.TmpDir(t, ""), "escaped.html")
	require.NoError(t, render.WriteMeritMap(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "<script>alert(1)</script>")
}
