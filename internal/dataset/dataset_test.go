package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/skolmap/internal/dataset"
	"github.com/UnknownOlympus/skolmap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = dataset.Columns{
	ID:           "Skol-enhetskod",
	Name:         "Skola",
	Municipality: "Skolkommun",
	Metric:       "Genomsnittligt meritvärde (17 ämnen)",
}

const preamble = "Statistik\n2025\n\nKälla: registret\n\n"

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(filet.TmpDir(t, ""), "schools.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRead(t *testing.T) {
	defer filet.CleanUp(t)

	opts := dataset.Options{Separator: ';', SkipRows: 5, Columns: testColumns}

	t.Run("parses rows and normalizes the comma decimal separator", func(t *testing.T) {
		content := preamble +
			"Skol-enhetskod;Skola;Skolkommun;Genomsnittligt meritvärde (17 ämnen)\n" +
			"12345;Test School;Uppsala;280,5\n" +
			"67890;Other School;Stockholm;199,9\n"

		records, err := dataset.Read(writeDataset(t, content), opts)

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, models.SchoolRecord{
			ID: "12345", Name: "Test School", Municipality: "Uppsala", Merit: 280.5,
		}, records[0])
	})

	t.Run("sorts by metric descending", func(t *testing.T) {
		content := preamble +
			"Skol-enhetskod;Skola;Skolkommun;Genomsnittligt meritvärde (17 ämnen)\n" +
			"1;Low;A;100,0\n" +
			"2;High;B;300,0\n" +
			"3;Mid;C;200,0\n"

		records, err := dataset.Read(writeDataset(t, content), opts)

		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "High", records[0].Name)
		assert.Equal(t, "Mid", records[1].Name)
		assert.Equal(t, "Low", records[2].Name)
	})

	t.Run("skips rows with missing id or unparsable metric", func(t *testing.T) {
		content := preamble +
			"Skol-enhetskod;Skola;Skolkommun;Genomsnittligt meritvärde (17 ämnen)\n" +
			";No Code;Uppsala;250,0\n" +
			"2;No Metric;Uppsala;.\n" +
			"3;Blank Metric;Uppsala;\n" +
			"4;Valid;Uppsala;210,0\n"

		records, err := dataset.Read(writeDataset(t, content), opts)

		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "4", records[0].ID)
	})

	t.Run("missing required column is an error", func(t *testing.T) {
		content := preamble + "Skol-enhetskod;Skola;Skolkommun\n1;X;Y\n"

		_, err := dataset.Read(writeDataset(t, content), opts)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing required column")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := dataset.Read(filepath.Join(filet.TmpDir(t, ""), "nope.csv"), opts)

		require.Error(t, err)
	})
}

func TestWrite(t *testing.T) {
	defer filet.CleanUp(t)

	records := []models.EnrichedRecord{
		{
			SchoolRecord: models.SchoolRecord{ID: "12345", Name: "Test School", Municipality: "Uppsala", Merit: 280.5},
			Address:      "Kungsgatan 10",
			Latitude:     59.86,
			Longitude:    17.64,
		},
	}

	path := filepath.Join(filet.TmpDir(t, ""), "out.csv")
	require.NoError(t, dataset.Write(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "school_id,school_name,municipality,address,merit_value,latitude,longitude")
	assert.Contains(t, content, "12345,Test School,Uppsala,Kungsgatan 10,280.5,59.86,17.64")
}
