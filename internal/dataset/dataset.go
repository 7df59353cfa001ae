// Package dataset reads the school register export and writes the enriched
// result. The export is a delimited file with a fixed number of preamble
// lines before the header; columns are addressed by header name and the merit
// value uses a comma as decimal separator.
package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/skolmap/internal/models"
)

// Columns names the required header columns of the input file.
type Columns struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	Municipality string `mapstructure:"municipality"`
	Metric       string `mapstructure:"metric"`
}

// Options configures how the input file is parsed.
type Options struct {
	Separator rune    // Field separator, ';' in the register export.
	SkipRows  int     // Preamble lines before the header row.
	Columns   Columns // Header names of the required columns.
}

// Read parses the register export at path into school records. Rows with a
// missing id or an unparsable metric are skipped; the result is sorted by
// metric, highest first. A missing file or a header without the required
// columns is an error: the input dataset is a global precondition.
func Read(path string, opts Options) ([]models.SchoolRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	for i := 0; i < opts.SkipRows; i++ {
		if _, err = reader.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("failed to skip dataset preamble: %w", err)
		}
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = opts.Separator
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	index, err := columnIndex(header, opts.Columns)
	if err != nil {
		return nil, err
	}

	var records []models.SchoolRecord
	for {
		row, readErr := csvReader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read dataset row: %w", readErr)
		}

		record, ok := parseRow(row, index)
		if ok {
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Merit > records[j].Merit
	})

	return records, nil
}

// columnIndex maps the required column names onto their positions in the
// header row.
func columnIndex(header []string, cols Columns) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.TrimSpace(name)] = i
	}

	index := make(map[string]int, 4)
	for _, name := range []string{cols.ID, cols.Name, cols.Municipality, cols.Metric} {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("dataset header is missing required column %q", name)
		}
		index[name] = pos
	}

	return map[string]int{
		"id":           index[cols.ID],
		"name":         index[cols.Name],
		"municipality": index[cols.Municipality],
		"metric":       index[cols.Metric],
	}, nil
}

// parseRow converts one data row into a SchoolRecord. The metric's comma
// decimal separator is normalized to a dot before parsing.
func parseRow(row []string, index map[string]int) (models.SchoolRecord, bool) {
	field := func(key string) string {
		pos := index[key]
		if pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	id := field("id")
	if id == "" {
		return models.SchoolRecord{}, false
	}

	metricText := strings.ReplaceAll(field("metric"), ",", ".")
	metric, err := strconv.ParseFloat(metricText, 64)
	if err != nil {
		return models.SchoolRecord{}, false
	}

	return models.SchoolRecord{
		ID:           id,
		Name:         field("name"),
		Municipality: field("municipality"),
		Merit:        metric,
	}, true
}

// Write saves the enriched records as a comma-separated file with a fixed
// header, consumed by the presentation layer.
func Write(path string, records []models.EnrichedRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output dataset: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"school_id", "school_name", "municipality", "address", "merit_value", "latitude", "longitude"}
	if err = writer.Write(header); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}

	for _, record := range records {
		row := []string{
			record.ID,
			record.Name,
			record.Municipality,
			record.Address,
			strconv.FormatFloat(record.Merit, 'f', -1, 64),
			strconv.FormatFloat(record.Latitude, 'f', -1, 64),
			strconv.FormatFloat(record.Longitude, 'f', -1, 64),
		}
		if err = writer.Write(row); err != nil {
			return fmt.Errorf("failed to write output row: %w", err)
		}
	}

	writer.Flush()
	if err = writer.Error(); err != nil {
		return fmt.Errorf("failed to flush output dataset: %w", err)
	}

	return nil
}
