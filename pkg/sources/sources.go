// Package sources reads raw tag tables into [catalog.Source] values.
//
// A table is CSV with the columns tag, category, count and alias, where
// alias is itself a comma-separated list (quoted in the CSV). The header
// row is optional; when present, columns are matched by name and may come
// in any order.
package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/storage"
)

// ErrMalformed is returned for a row whose category or count cannot be
// parsed, or a header without a tag column.
var ErrMalformed = errors.New("sources: malformed row")

type columns struct {
	tag, category, count, alias int
}

var positional = columns{tag: 0, category: 1, count: 2, alias: 3}

// headerNames maps accepted header spellings to a column.
var headerNames = map[string]func(*columns, int){
	"tag":        func(c *columns, i int) { c.tag = i },
	"name":       func(c *columns, i int) { c.tag = i },
	"category":   func(c *columns, i int) { c.category = i },
	"count":      func(c *columns, i int) { c.count = i },
	"post_count": func(c *columns, i int) { c.count = i },
	"popularity": func(c *columns, i int) { c.count = i },
	"alias":      func(c *columns, i int) { c.alias = i },
	"aliases":    func(c *columns, i int) { c.alias = i },
}

// Read parses a CSV tag table named name.
func Read(r io.Reader, name string) (catalog.Source, error) {
	src := catalog.Source{Name: name}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	cols := positional
	for first := true; ; first = false {
		row, err := cr.Read()
		if err == io.EOF {
			return src, nil
		}
		if err != nil {
			return src, fmt.Errorf("sources: %s: %w", name, err)
		}
		if first {
			if c, ok, err := parseHeader(row); err != nil {
				return src, fmt.Errorf("sources: %s: %w", name, err)
			} else if ok {
				cols = c
				continue
			}
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return src, fmt.Errorf("sources: %s:%d: %w", name, line, err)
		}
		src.Records = append(src.Records, rec)
	}
}

// parseHeader reports whether row is a header and maps its columns.
func parseHeader(row []string) (columns, bool, error) {
	if len(row) == 0 || !isHeaderCell(row[0]) {
		return columns{}, false, nil
	}
	c := columns{tag: -1, category: -1, count: -1, alias: -1}
	for i, cell := range row {
		if set, ok := headerNames[headerKey(cell)]; ok {
			set(&c, i)
		}
	}
	if c.tag < 0 {
		return c, false, fmt.Errorf("%w: header has no tag column", ErrMalformed)
	}
	return c, true, nil
}

func isHeaderCell(s string) bool {
	_, ok := headerNames[headerKey(s)]
	return ok
}

func headerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

func parseRow(row []string, c columns) (catalog.Record, error) {
	var rec catalog.Record
	rec.Name = strings.TrimSpace(field(row, c.tag))
	if s := strings.TrimSpace(field(row, c.category)); s != "" {
		cat, err := catalog.ParseCategory(s)
		if err != nil {
			return rec, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rec.Category = cat
	}
	if s := strings.TrimSpace(field(row, c.count)); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("%w: count %q", ErrMalformed, s)
		}
		rec.Popularity = n
	}
	for _, a := range strings.Split(field(row, c.alias), ",") {
		if a = strings.TrimSpace(a); a != "" {
			rec.Aliases = append(rec.Aliases, a)
		}
	}
	return rec, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ReadFile reads a local CSV file. An empty name defaults to the file's
// base name without extension.
func ReadFile(file, name string) (catalog.Source, error) {
	f, err := os.Open(file)
	if err != nil {
		return catalog.Source{}, fmt.Errorf("sources: %w", err)
	}
	defer f.Close()
	return Read(f, defaultName(file, name))
}

// ReadStore reads a CSV file from a file store, e.g. an S3 bucket holding
// the raw exports.
func ReadStore(ctx context.Context, store storage.FileStore, file, name string) (catalog.Source, error) {
	rc, err := store.Read(ctx, file)
	if err != nil {
		return catalog.Source{}, fmt.Errorf("sources: open %s in %s: %w", file, store, err)
	}
	defer rc.Close()
	return Read(rc, defaultName(file, name))
}

func defaultName(file, name string) string {
	if name != "" {
		return name
	}
	base := path.Base(strings.ReplaceAll(file, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
