package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// jsonbValue marshals a map for a jsonb column. Nil and empty maps are
// stored as NULL.
func jsonbValue(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}
	return raw, nil
}

// jsonbScan unmarshals a jsonb column into a map. NULL scans to nil.
func jsonbScan(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal jsonb value: %w", err)
	}
	return m, nil
}

// nullDecimal converts a nullable numeric column to *decimal.Decimal.
func nullDecimal(n sql.NullString) (*decimal.Decimal, error) {
	if !n.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(n.String)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric value %q: %w", n.String, err)
	}
	return &d, nil
}

// decimalValue converts *decimal.Decimal to a driver value, NULL when nil.
func decimalValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
