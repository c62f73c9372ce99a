package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sdmaps/plan-map/internal/db"
	"github.com/sdmaps/plan-map/internal/service"
)

// CacheHandler serves the DuckDB attribute cache: per-overlay attribute rows
// plus an ad-hoc SQL query endpoint for exploration.
type CacheHandler struct {
	svc  *service.MapService
	conn *sql.DB
}

// NewCacheHandler creates a cache handler. conn may be nil; every endpoint
// then reports 503.
func NewCacheHandler(svc *service.MapService) *CacheHandler {
	return &CacheHandler{svc: svc, conn: svc.DB()}
}

// RegisterRoutes registers the cache routes with Huma.
func (h *CacheHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/attributes/{id}", h.GetAttributes, huma.OperationTags("cache"))
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("cache"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("cache"))
}

// AttributesOutput lists cached attribute rows for one overlay.
type AttributesOutput struct {
	Body struct {
		Overlay string          `json:"overlay" doc:"Overlay id"`
		Rows    []db.FeatureRow `json:"rows" doc:"Cached attribute rows"`
		Count   int             `json:"count" doc:"Number of rows"`
	}
}

func (h *CacheHandler) GetAttributes(ctx context.Context, input *IDInput) (*AttributesOutput, error) {
	if _, ok := h.svc.OverlayInfo(input.ID); !ok {
		return nil, huma.Error404NotFound("overlay not found")
	}
	rows, err := h.svc.Attributes(ctx, input.ID)
	if err != nil {
		return nil, huma.Error503ServiceUnavailable("Attribute cache not available")
	}
	if rows == nil {
		rows = []db.FeatureRow{}
	}

	out := &AttributesOutput{}
	out.Body.Overlay = input.ID
	out.Body.Rows = rows
	out.Body.Count = len(rows)
	return out, nil
}

// TablesOutput lists cache tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

func (h *CacheHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.conn == nil {
		return nil, huma.Error503ServiceUnavailable("Attribute cache not available")
	}

	rows, err := h.conn.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	out := &TablesOutput{}
	out.Body.Tables = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			out.Body.Tables = append(out.Body.Tables, name)
		}
	}
	return out, nil
}

// QueryInput is an ad-hoc SQL query against the cache.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"SQL query to execute"`
	}
}

// QueryOutput is an ad-hoc query result.
type QueryOutput struct {
	Body struct {
		Columns []string         `json:"columns" doc:"Column names"`
		Rows    []map[string]any `json:"rows" doc:"Query results"`
		Count   int              `json:"count" doc:"Number of rows returned"`
	}
}

func (h *CacheHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.conn == nil {
		return nil, huma.Error503ServiceUnavailable("Attribute cache not available")
	}

	rows, err := h.conn.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out.Body.Rows = append(out.Body.Rows, row)
	}
	out.Body.Count = len(out.Body.Rows)
	return out, nil
}
