package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReadCSV reads one table from r. The first record is the header; numeric
// cells are parsed as float64, everything else stays a string. Empty cells
// become nil so they round-trip to JSON null.
func ReadCSV(id string, r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading %s: %w", id, err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("reading %s: missing header record", id)
	}

	t := Table{ID: id, Columns: records[0]}
	for _, record := range records[1:] {
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = parseCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	if verr := t.Validate(); verr != nil {
		return Table{}, verr
	}
	return t, nil
}

// ReadCSVDir loads every .csv file in dir as a table keyed by its file
// name, sorted for deterministic submission order.
func ReadCSVDir(dir string) ([]Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		t, err := ReadCSV(name, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// WriteCSV writes the table to w with its header record first.
func (t Table) WriteCSV(w io.Writer) error {
	if verr := t.Validate(); verr != nil {
		return verr
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVDir writes each table to dir under its id, appending .csv when
// the id does not already carry the extension.
func WriteCSVDir(dir string, tables []Table) error {
	for _, t := range tables {
		name := t.ID
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			name += ".csv"
		}
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		err = t.WriteCSV(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func parseCell(cell string) any {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
