package export

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"lotorder-engine/internal/model"
)

// Columns is the stable export column set. The qr_path column is never
// empty for an included row: rows without a successful artifact are excluded
// upstream before the writer runs.
var Columns = []string{
	"vin", "stock_number", "year", "make", "model", "trim",
	"price", "msrp", "condition", "qr_path",
}

// Row pairs a vehicle with its resolved QR artifact path.
type Row struct {
	Vehicle model.VehicleRecord
	QRPath  string
}

// BuildRows assembles the Phase-2 export set: a vehicle is included only if
// its Phase-1 artifact succeeded AND the file exists on disk at build time.
// Vehicles failing either check come back in the skipped list.
func BuildRows(vehicles []model.VehicleRecord, artifacts map[string]string) (rows []Row, skipped []string) {
	for _, v := range vehicles {
		path, ok := artifacts[v.VIN]
		if !ok || path == "" {
			skipped = append(skipped, v.VIN)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			log.Printf("[Export] Warning: artifact for vin %s reported success but is missing on disk: %v", v.VIN, err)
			skipped = append(skipped, v.VIN)
			continue
		}
		rows = append(rows, Row{Vehicle: v, QRPath: path})
	}
	return rows, skipped
}

// SortRows orders rows per the dealership's output rules. Unknown sort keys
// fall back to VIN order so exports stay deterministic.
func SortRows(rows []Row, rules model.OutputRules) {
	less := func(a, b Row) bool { return a.Vehicle.VIN < b.Vehicle.VIN }
	switch rules.SortBy {
	case "stock_number":
		less = func(a, b Row) bool { return a.Vehicle.StockNumber < b.Vehicle.StockNumber }
	case "year":
		less = func(a, b Row) bool { return a.Vehicle.Year < b.Vehicle.Year }
	case "make":
		less = func(a, b Row) bool { return a.Vehicle.Make < b.Vehicle.Make }
	case "price":
		less = func(a, b Row) bool { return moneyOrZero(a.Vehicle.Price) < moneyOrZero(b.Vehicle.Price) }
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

// WriteCSV writes the export file atomically: rows go to a temp file that is
// renamed into place, so a crash mid-write never leaves a partial export.
func WriteCSV(outputDir, jobID string, rows []Row) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	finalPath := filepath.Join(outputDir, fmt.Sprintf("order_%s_%s.csv", time.Now().UTC().Format("20060102"), jobID))
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		v := row.Vehicle
		record := []string{
			v.VIN,
			v.StockNumber,
			strconv.Itoa(v.Year),
			v.Make,
			v.Model,
			v.Trim,
			moneyString(v.Price),
			moneyString(v.MSRP),
			string(v.Condition),
			row.QRPath,
		}
		if err := w.Write(record); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return "", fmt.Errorf("failed to write row for vin %s: %w", v.VIN, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to flush export: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close export: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize export: %w", err)
	}

	log.Printf("[Export] Wrote %d rows to %s", len(rows), finalPath)
	return finalPath, nil
}

func moneyString(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}

func moneyOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
