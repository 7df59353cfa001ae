// Package render produces the interactive merit maps: one HTML document per
// map with colored circle markers on a Leaflet base layer and a legend over
// the metric range.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"sort"

	"github.com/UnknownOlympus/skolmap/internal/models"
)

// Initial map view over the whole country.
const (
	viewLatitude  = 62.0
	viewLongitude = 15.0
	viewZoom      = 5
)

const bucketCount = 10

// spectrum maps normalized merit values onto ten colors from red (lowest)
// to blue (highest).
var spectrum = [bucketCount]string{
	"#FF0000",
	"#FF4000",
	"#FF8000",
	"#FFB000",
	"#FFD700",
	"#B8FF00",
	"#80FF00",
	"#00FF80",
	"#0080FF",
	"#0040FF",
}

type marker struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Color string  `json:"color"`
	Popup string  `json:"popup"`
	Rank  int     `json:"rank,omitempty"`
}

type legendItem struct {
	Color string
	From  float64
	To    float64
}

type mapData struct {
	Title       string
	Ranked      bool
	Lat         float64
	Lng         float64
	Zoom        int
	MarkersJSON template.JS
	Legend      []legendItem
	Total       int
	MinMerit    float64
	MaxMerit    float64
}

// WriteMeritMap renders the merit map for the enriched records to path.
func WriteMeritMap(path string, records []models.EnrichedRecord) error {
	return writeMap(path, records, false)
}

// WriteRankedMap renders the ranked variant: every marker carries the
// school's rank by merit value, 1 being the highest.
func WriteRankedMap(path string, records []models.EnrichedRecord) error {
	return writeMap(path, records, true)
}

func writeMap(path string, records []models.EnrichedRecord, ranked bool) error {
	if len(records) == 0 {
		return fmt.Errorf("no records to render for %s", path)
	}

	minMerit, maxMerit := meritRange(records)

	ordered := make([]models.EnrichedRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Merit > ordered[j].Merit
	})

	markers := make([]marker, 0, len(ordered))
	for i, record := range ordered {
		m := marker{
			Lat:   record.Latitude,
			Lng:   record.Longitude,
			Color: colorFor(record.Merit, minMerit, maxMerit),
			Popup: popupHTML(record, ranked, i+1, len(ordered)),
		}
		if ranked {
			m.Rank = i + 1
		}
		markers = append(markers, m)
	}

	markersJSON, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("failed to encode markers: %w", err)
	}

	title := "Merit Value Map"
	if ranked {
		title = "School Rankings"
	}

	data := mapData{
		Title:       title,
		Ranked:      ranked,
		Lat:         viewLatitude,
		Lng:         viewLongitude,
		Zoom:        viewZoom,
		MarkersJSON: template.JS(markersJSON), //nolint:gosec // json.Marshal output of typed data
		Legend:      legendItems(minMerit, maxMerit),
		Total:       len(ordered),
		MinMerit:    minMerit,
		MaxMerit:    maxMerit,
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create map file: %w", err)
	}
	defer file.Close()

	if err = mapTemplate.Execute(file, data); err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}

	return nil
}

// colorFor maps a merit value onto the ten-level spectrum within the given
// range.
func colorFor(merit, minMerit, maxMerit float64) string {
	if maxMerit <= minMerit {
		return spectrum[0]
	}

	normalized := (merit - minMerit) / (maxMerit - minMerit)
	bucket := int(normalized * bucketCount)
	if bucket >= bucketCount {
		bucket = bucketCount - 1
	}
	if bucket < 0 {
		bucket = 0
	}

	return spectrum[bucket]
}

func meritRange(records []models.EnrichedRecord) (float64, float64) {
	minMerit, maxMerit := records[0].Merit, records[0].Merit
	for _, record := range records[1:] {
		if record.Merit < minMerit {
			minMerit = record.Merit
		}
		if record.Merit > maxMerit {
			maxMerit = record.Merit
		}
	}

	return minMerit, maxMerit
}

func legendItems(minMerit, maxMerit float64) []legendItem {
	items := make([]legendItem, 0, bucketCount)
	span := maxMerit - minMerit
	for i := 0; i < bucketCount; i++ {
		items = append(items, legendItem{
			Color: spectrum[i],
			From:  minMerit + span*float64(i)/bucketCount,
			To:    minMerit + span*float64(i+1)/bucketCount,
		})
	}

	return items
}

// popupHTML builds the marker popup. The record fields are escaped; the
// markup itself is ours.
func popupHTML(record models.EnrichedRecord, ranked bool, rank, total int) string {
	name := template.HTMLEscapeString(record.Name)
	municipality := template.HTMLEscapeString(record.Municipality)
	address := template.HTMLEscapeString(record.Address)

	if ranked {
		return fmt.Sprintf(
			"<b>#%d - %s</b><br>Merit: %.1f/340<br>Rank: %d of %d<br>Municipality: %s<br>Address: %s",
			rank, name, record.Merit, rank, total, municipality, address)
	}

	return fmt.Sprintf(
		"<b>%s</b><br>Merit: %.1f/340<br>Municipality: %s<br>Address: %s",
		name, record.Merit, municipality, address)
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  html, body, #map { height: 100%; margin: 0; }
  .legend {
    position: fixed; top: 20px; right: 20px; width: 210px; z-index: 9999;
    background: white; border: 3px solid #333; border-radius: 10px;
    padding: 12px; font: 14px sans-serif; box-shadow: 0 4px 8px rgba(0,0,0,0.3);
  }
  .legend h3 { margin: 0 0 10px 0; font-size: 16px; color: #333; }
  .legend .item { display: flex; align-items: center; margin: 3px 0; font-size: 13px; }
  .legend .swatch { width: 16px; height: 16px; border-radius: 50%; margin-right: 8px; }
  .legend .footer { margin-top: 12px; font-size: 12px; color: #666; border-top: 1px solid #ccc; padding-top: 8px; }
  .rank-label {
    font: bold 11px sans-serif; color: white; text-shadow: 1px 1px 2px black;
    background: rgba(0,0,0,0.6); padding: 1px 3px; border-radius: 3px; white-space: nowrap;
  }
</style>
</head>
<body>
<div id="map"></div>
<div class="legend">
  <h3>{{.Title}}</h3>
  <div style="margin-bottom: 8px; font-size: 12px; color: #666;">Red (Low) to Blue (High)</div>
  {{range .Legend}}<div class="item"><div class="swatch" style="background-color: {{.Color}};"></div><span>{{printf "%.0f" .From}} - {{printf "%.0f" .To}}</span></div>
  {{end}}<div class="footer">
    Total: {{.Total}} schools mapped<br>
    Range: {{printf "%.1f" .MinMerit}} - {{printf "%.1f" .MaxMerit}}
  </div>
</div>
<script>
var map = L.map('map').setView([{{.Lat}}, {{.Lng}}], {{.Zoom}});
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
var markers = {{.MarkersJSON}};
markers.forEach(function (m) {
  L.circleMarker([m.lat, m.lng], {
    radius: {{if .Ranked}}8{{else}}6{{end}},
    color: m.color,
    fillColor: m.color,
    fillOpacity: 0.8,
    weight: 2
  }).addTo(map).bindPopup(m.popup);
{{if .Ranked}}  L.marker([m.lat, m.lng], {
    icon: L.divIcon({ className: '', html: '<div class="rank-label">' + m.rank + '</div>', iconSize: [30, 15], iconAnchor: [-15, 8] })
  }).addTo(map);
{{end}}});
</script>
</body>
</html>
`))
