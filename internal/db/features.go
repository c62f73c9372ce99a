package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// FeatureRow is one cached attribute record.
type FeatureRow struct {
	OverlayID  string          `json:"overlayId"`
	Name       string          `json:"name"`
	Properties json.RawMessage `json:"properties"`
}

// ReplaceFeatures swaps the cached attribute rows for one overlay with the
// given feature collection. nameProp selects the attribute stored in the name
// column for quick lookups.
func ReplaceFeatures(ctx context.Context, conn *sql.DB, overlayID, nameProp string, fc *geojson.FeatureCollection) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM overlay_features WHERE overlay_id = ?`, overlayID); err != nil {
		return fmt.Errorf("db: clear overlay %s: %w", overlayID, err)
	}

	for _, f := range fc.Features {
		props, err := json.Marshal(f.Properties)
		if err != nil {
			continue
		}
		name := ""
		if nameProp != "" {
			if v, ok := f.Properties[nameProp].(string); ok {
				name = v
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO overlay_features (overlay_id, name, properties) VALUES (?, ?, ?)`,
			overlayID, name, string(props),
		); err != nil {
			return fmt.Errorf("db: insert feature for %s: %w", overlayID, err)
		}
	}

	return tx.Commit()
}

// Attributes returns the cached attribute rows for one overlay.
func Attributes(ctx context.Context, conn *sql.DB, overlayID string) ([]FeatureRow, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT overlay_id, name, properties FROM overlay_features WHERE overlay_id = ? ORDER BY name`,
		overlayID,
	)
	if err != nil {
		return nil, fmt.Errorf("db: query attributes: %w", err)
	}
	defer rows.Close()

	var out []FeatureRow
	for rows.Next() {
		var r FeatureRow
		var props string
		if err := rows.Scan(&r.OverlayID, &r.Name, &props); err != nil {
			continue
		}
		r.Properties = json.RawMessage(props)
		out = append(out, r)
	}
	return out, rows.Err()
}
