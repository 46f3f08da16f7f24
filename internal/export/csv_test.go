package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lotorder-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, vin string) string {
	t.Helper()
	path := filepath.Join(dir, vin+".png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	return path
}

func TestBuildRows_ExcludesMissingArtifacts(t *testing.T) {
	dir := t.TempDir()

	vehicles := []model.VehicleRecord{
		{VIN: "VIN00000000000001"},
		{VIN: "VIN00000000000002"},
		{VIN: "VIN00000000000003"},
	}
	artifacts := map[string]string{
		"VIN00000000000001": writeArtifact(t, dir, "VIN00000000000001"),
		// VIN...002 has no artifact entry at all.
		// VIN...003 claims a path that does not exist on disk.
		"VIN00000000000003": filepath.Join(dir, "missing.png"),
	}

	rows, skipped := BuildRows(vehicles, artifacts)
	require.Len(t, rows, 1)
	assert.Equal(t, "VIN00000000000001", rows[0].Vehicle.VIN)
	assert.ElementsMatch(t, []string{"VIN00000000000002", "VIN00000000000003"}, skipped)
}

func TestSortRows(t *testing.T) {
	p1, p2 := 30000.0, 20000.0
	rows := []Row{
		{Vehicle: model.VehicleRecord{VIN: "B", StockNumber: "S2", Year: 2020, Price: &p1}},
		{Vehicle: model.VehicleRecord{VIN: "A", StockNumber: "S1", Year: 2022, Price: &p2}},
	}

	SortRows(rows, model.OutputRules{SortBy: "year"})
	assert.Equal(t, "B", rows[0].Vehicle.VIN)

	SortRows(rows, model.OutputRules{SortBy: "price"})
	assert.Equal(t, "A", rows[0].Vehicle.VIN)

	// Unknown sort keys fall back to VIN order.
	SortRows(rows, model.OutputRules{SortBy: "nonsense"})
	assert.Equal(t, "A", rows[0].Vehicle.VIN)
	assert.Equal(t, "B", rows[1].Vehicle.VIN)
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	artifactPath := writeArtifact(t, dir, "VIN00000000000001")

	price := 28500.0
	rows := []Row{{
		Vehicle: model.VehicleRecord{
			VIN:         "VIN00000000000001",
			StockNumber: "P1234",
			Year:        2022,
			Make:        "Honda",
			Model:       "Accord",
			Trim:        "EX-L",
			Price:       &price,
			Condition:   model.ConditionUsed,
		},
		QRPath: artifactPath,
	}}

	exportDir := filepath.Join(dir, "exports")
	path, err := WriteCSV(exportDir, "job-123", rows)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_job-123.csv"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Columns, records[0])

	row := records[1]
	assert.Equal(t, "VIN00000000000001", row[0])
	assert.Equal(t, "P1234", row[1])
	assert.Equal(t, "2022", row[2])
	assert.Equal(t, "28500.00", row[6])
	assert.Equal(t, "", row[7]) // no MSRP
	assert.Equal(t, "used", row[8])
	assert.Equal(t, artifactPath, row[9])

	// No temp file left behind.
	entries, err := os.ReadDir(exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteCSV_EmptyRowsStillWritesHeader(t *testing.T) {
	path, err := WriteCSV(t.TempDir(), "job-empty", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Columns, ",")+"\n", string(data))
}
