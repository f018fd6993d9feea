// Package catalogio reads product catalog files: the JSON array used for
// seeding and the gzip-compressed JSON lines dumps used for bulk import.
package catalogio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-api/internal/domain/product"
)

// maxLine bounds a single JSON lines record.
const maxLine = 1 << 20

// Record is the file representation of a product.
type Record struct {
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	BrandLogo    string          `json:"brandLogo"`
	Category     string          `json:"category"`
	Images       []string        `json:"images"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
}

// Product converts the record to a catalog product without an ID.
func (r Record) Product() product.Product {
	return product.Product{
		Name:         strings.TrimSpace(r.Name),
		Brand:        r.Brand,
		BrandLogo:    r.BrandLogo,
		Category:     r.Category,
		Images:       r.Images,
		Description:  r.Description,
		Price:        r.Price,
		CountInStock: r.CountInStock,
	}
}

// Key identifies a product across files: brand and name, case-insensitively.
func (r Record) Key() string {
	return strings.ToLower(strings.TrimSpace(r.Brand)) + "\x00" + strings.ToLower(strings.TrimSpace(r.Name))
}

// ParseArray decodes a JSON array of records into products.
func ParseArray(data []byte) ([]product.Product, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	out := make([]product.Product, len(records))
	for i, r := range records {
		out[i] = r.Product()
	}
	return out, nil
}

// LineError reports a record that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return "line " + strconv.Itoa(e.Line) + ": " + e.Err.Error()
}

func (e *LineError) Unwrap() error { return e.Err }

// StreamLines calls fn for every record of a JSON lines stream. Blank lines
// are skipped. A malformed line is passed to onBad, or aborts the stream
// when onBad is nil.
func StreamLines(ctx context.Context, r io.Reader, fn func(Record) error, onBad func(*LineError)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := scanner.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			bad := &LineError{Line: line, Err: err}
			if onBad == nil {
				return bad
			}
			onBad(bad)
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}
