package workbook

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// CellStatus says how a cell's raw content became a number.
type CellStatus string

const (
	StatusNumber       CellStatus = "number"
	StatusEmpty        CellStatus = "empty"
	StatusFormulaError CellStatus = "formula_error"
	StatusUnparsable   CellStatus = "unparsable"
	StatusUnsupported  CellStatus = "unsupported"
	// StatusUnavailable means the cell could not be read at all.
	StatusUnavailable CellStatus = "unavailable"
)

const (
	formulaErrorMarker = "#"
	currencyPrefix     = "R$"
)

// CellValue is the outcome of reading one cell. Value is zero for every
// status except StatusNumber, so callers that only want a number can use it
// directly while still being able to tell a real zero from a fallback.
type CellValue struct {
	Address string
	Raw     any
	Value   float64
	Status  CellStatus
	Err     error
}

// Determined reports whether the cell was read. Empty, error and
// unparsable cells are determined; they are just not numbers.
func (v CellValue) Determined() bool {
	return v.Status != StatusUnavailable
}

// Coerce normalizes a raw cell value to a float using the workbook's
// Brazilian number formatting: "R$ 1.234,56" is 1234.56.
func Coerce(raw any) (float64, CellStatus) {
	switch v := raw.(type) {
	case nil:
		return 0, StatusEmpty
	case float64:
		return v, StatusNumber
	case float32:
		return float64(v), StatusNumber
	case int:
		return float64(v), StatusNumber
	case int64:
		return float64(v), StatusNumber
	case bool:
		if v {
			return 1, StatusNumber
		}
		return 0, StatusNumber
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, StatusUnparsable
		}
		return f, StatusNumber
	case string:
		return coerceText(v)
	default:
		return 0, StatusUnsupported
	}
}

func coerceText(s string) (float64, CellStatus) {
	if strings.HasPrefix(s, formulaErrorMarker) {
		return 0, StatusFormulaError
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, currencyPrefix, ""))
	if cleaned == "" {
		return 0, StatusEmpty
	}
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, StatusUnparsable
	}
	f, _ := d.Float64()
	return f, StatusNumber
}
