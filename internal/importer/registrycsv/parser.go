package registrycsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	enc "github.com/terrakit/terrakit/internal/encoding"
	"github.com/terrakit/terrakit/internal/parcel"
)

// Parser reads land-registry parcel inventory exports and produces inventory
// rows. The header row is auto-detected by matching column names against
// known profiles, since registry exports lead with free-form preamble lines.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]parcel.InventoryRow, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, fmt.Errorf("no matching inventory format found: expected a header with parcel number and surface columns")
	}

	return parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
}

// colIndex maps column names to their index in the row.
type colIndex map[string]int

// Profile describes the column layout of one inventory export format.
// Adding a new issuing office is just adding a Profile to the profiles slice.
type Profile struct {
	Name       string
	NumberCol  string
	SurfaceCol string
}

// profiles is the ordered list of export formats to try during
// auto-detection. More specific profiles come first.
var profiles = []Profile{
	{
		Name:       "registry",
		NumberCol:  "Parcel No.",
		SurfaceCol: "Surface (m2)",
	},
	{
		Name:       "surveyor",
		NumberCol:  "Piece",
		SurfaceCol: "Area m²",
	},
}

func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.TrimSpace(cell)
			if name != "" {
				cols[name] = i
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, name := range []string{p.NumberCol, p.SurfaceCol} {
		if _, ok := cols[name]; !ok {
			return false
		}
	}

	return true
}

// parseRows extracts inventory rows using the matched profile. headerRowNum
// is the 0-based index of the header in the original file, used in error
// messages.
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]parcel.InventoryRow, error) {
	numberIdx := cols[p.NumberCol]
	surfaceIdx := cols[p.SurfaceCol]

	var parcels []parcel.InventoryRow

	for i, row := range rows {
		rowNum := headerRowNum + i + 2 // 1-based, skipping header

		number := cellValue(row, numberIdx)
		if number == "" {
			// Footer or spacer line.
			continue
		}

		surfaceStr := cellValue(row, surfaceIdx)
		if surfaceStr == "" {
			return nil, fmt.Errorf("row %d: missing surface for parcel %s", rowNum, number)
		}

		surface, err := parseSurface(surfaceStr)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing surface %q: %w", rowNum, surfaceStr, err)
		}

		if surface <= 0 {
			return nil, fmt.Errorf("row %d: non-positive surface for parcel %s", rowNum, number)
		}

		parcels = append(parcels, parcel.InventoryRow{
			Number:    number,
			SurfaceM2: surface,
		})
	}

	return parcels, nil
}

// parseSurface parses a European-formatted surface value.
// Format examples: "1.020,5" -> 1020.5, "450,00" -> 450.
func parseSurface(s string) (float64, error) {
	clean := strings.ReplaceAll(s, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, err
	}

	f, _ := d.Float64()

	return f, nil
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
