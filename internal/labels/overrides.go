// Package labels loads the curated label-override table: a two-column
// KEY,LABEL resource mapping plan-area names to display strings.
package labels

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Table maps an uppercased plan-area name to its display label. Read-only
// after construction.
type Table map[string]string

// Lookup resolves a key case-insensitively. The second return is false when
// no override exists.
func (t Table) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[strings.ToUpper(strings.TrimSpace(key))]
	return v, ok
}

// Load fetches and parses the override resource. location may be an http(s)
// URL or a local file path. Any failure logs and returns an empty table:
// label resolution falls back to feature attributes, never to an error.
func Load(ctx context.Context, client *http.Client, location string) Table {
	log := zap.L().With(zap.String("component", "labels"))
	if location == "" {
		return nil
	}

	r, err := open(ctx, client, location)
	if err != nil {
		log.Warn("override resource unavailable, labels fall back to attributes",
			zap.String("location", location), zap.Error(err))
		return nil
	}
	defer r.Close()

	table := Parse(r, log)
	log.Info("label overrides loaded", zap.Int("entries", len(table)))
	return table
}

func open(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode}
		}
		return resp.Body, nil
	}
	return os.Open(location)
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

// Parse reads the delimited resource. The first line is the header; anything
// other than KEY,LABEL (case-insensitive) is logged but not fatal. Each row
// splits on the first comma only, both halves trimmed; empty keys are
// skipped; "|" segment breaks (with surrounding whitespace) become newlines.
func Parse(r io.Reader, log *zap.Logger) Table {
	if log == nil {
		log = zap.L()
	}
	table := make(Table)

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if !validHeader(line) {
				log.Warn("unexpected override header", zap.String("header", line))
			}
			continue
		}

		key, value, found := strings.Cut(line, ",")
		if !found {
			log.Debug("skipping row without delimiter", zap.String("row", line))
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" {
			log.Debug("skipping row with empty key")
			continue
		}
		table[key] = normalizeBreaks(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		log.Warn("override resource truncated", zap.Error(err))
	}
	return table
}

func validHeader(line string) bool {
	k, v, found := strings.Cut(line, ",")
	if !found {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(k), "KEY") &&
		strings.EqualFold(strings.TrimSpace(v), "LABEL")
}

// normalizeBreaks turns "|" separators into newlines, absorbing whitespace
// around each break.
func normalizeBreaks(s string) string {
	if !strings.Contains(s, "|") {
		return s
	}
	parts := strings.Split(s, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, "\n")
}
