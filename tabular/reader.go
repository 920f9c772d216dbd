package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "Tabular")

// ErrEmptyTable is returned when a file has no header row.
var ErrEmptyTable = errors.New("table has no header row")

// absentMarkers are cell contents that mean "no value".
var absentMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"-":    true,
	"--":   true,
	"n/a":  true,
	"na":   true,
	"null": true,
}

// ParseNumber parses a numeric cell. Thousands separators, percent signs and
// rupee symbols are ignored. Blank, placeholder and unparsable cells are nil.
func ParseNumber(cell string) *float64 {
	s := strings.TrimSpace(cell)
	if absentMarkers[strings.ToLower(s)] {
		return nil
	}

	s = strings.NewReplacer(",", "", "%", "", "₹", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseFlag parses a true/false or yes/no cell, or a number equal to 1 or 0
// ("1.00" is true). Any other number is nil.
func ParseFlag(cell string) *bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true", "yes", "y":
		return models.Bool(true)
	case "false", "no", "n":
		return models.Bool(false)
	}

	v := ParseNumber(cell)
	switch {
	case v == nil:
		return nil
	case *v == 1:
		return models.Bool(true)
	case *v == 0:
		return models.Bool(false)
	}
	return nil
}

// table is a header-indexed view over a CSV stream.
type table struct {
	name    string
	reader  *csv.Reader
	header  []string
	index   map[string]int
	skipped int
}

func openTable(name string, r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyTable)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CSV header: %w", name, err)
	}

	t := &table{name: name, reader: cr, index: make(map[string]int, len(header))}
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		t.header = append(t.header, col)
		if _, dup := t.index[col]; !dup {
			t.index[col] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &engine.MissingFieldError{Table: name, Columns: missing}
	}
	return t, nil
}

// next returns the next well-formed record, or io.EOF.
// Records whose field count does not match the header are skipped.
func (t *table) next() ([]string, error) {
	for {
		record, err := t.reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				t.skip(parseErr.Line, err.Error())
				continue
			}
			return nil, fmt.Errorf("%s: failed to read CSV row: %w", t.name, err)
		}
		if len(record) != len(t.header) {
			line, _ := t.reader.FieldPos(0)
			t.skip(line, fmt.Sprintf("expected %d fields, got %d", len(t.header), len(record)))
			continue
		}
		return record, nil
	}
}

func (t *table) skip(line int, reason string) {
	t.skipped++
	logger.WithFields(logrus.Fields{
		"table":  t.name,
		"line":   line,
		"reason": reason,
	}).Warn("Skipping malformed CSV row")
}

func (t *table) cell(record []string, col string) string {
	if i, ok := t.index[col]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

func (t *table) number(record []string, col string) *float64 {
	raw := t.cell(record, col)
	v := ParseNumber(raw)
	if v == nil && !absentMarkers[strings.ToLower(raw)] {
		logger.WithFields(logrus.Fields{
			"table":  t.name,
			"column": col,
			"value":  raw,
		}).Debug("Unparsable numeric cell treated as absent")
	}
	return v
}
