// Package tabular holds the table value exchanged with the platform: an
// ordered list of column names plus ordered rows of cells. Jobs submit and
// return collections of these tables, identified by a file-style id such as
// "ProductInfo.csv".
package tabular

import (
	"fmt"

	"github.com/optikit/optikit/pkg/contract"
)

// Table is one named input or output collection. Rows keep their submission
// order; cells are JSON-shaped values (string, float64, bool or nil).
type Table struct {
	ID      string
	Columns []string
	Rows    [][]any
}

// Payload is the wire shape the platform expects for input_data and returns
// in output_data.
type Payload struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields,omitempty"`
	Values [][]any  `json:"values,omitempty"`
}

// Validate rejects tables that cannot be serialized losslessly: a missing
// id, empty or duplicated column names, or rows whose width differs from
// the header.
func (t Table) Validate() *contract.Error {
	if t.ID == "" {
		return contract.NewError(contract.ErrorCodeBadRequest, "table id must not be empty")
	}
	if len(t.Columns) == 0 {
		return contract.NewErrorf(contract.ErrorCodeBadRequest, "table %q has no columns", t.ID)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		if col == "" {
			return contract.NewErrorf(contract.ErrorCodeBadRequest, "table %q has an empty column name", t.ID)
		}
		if _, dup := seen[col]; dup {
			return contract.NewErrorf(contract.ErrorCodeBadRequest, "table %q has duplicate column %q", t.ID, col)
		}
		seen[col] = struct{}{}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return contract.NewErrorf(contract.ErrorCodeBadRequest,
				"table %q row %d has %d cells, expected %d", t.ID, i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Payload converts the table into its wire shape, validating first.
func (t Table) Payload() (Payload, *contract.Error) {
	if err := t.Validate(); err != nil {
		return Payload{}, err
	}
	return Payload{ID: t.ID, Fields: t.Columns, Values: t.Rows}, nil
}

// FromPayload rebuilds a table from the wire shape, applying the same
// validation as the outbound direction.
func FromPayload(p Payload) (Table, *contract.Error) {
	t := Table{ID: p.ID, Columns: p.Fields, Rows: p.Values}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Payloads converts a set of tables, failing on the first invalid one.
func Payloads(tables []Table) ([]Payload, *contract.Error) {
	payloads := make([]Payload, 0, len(tables))
	for _, t := range tables {
		p, err := t.Payload()
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func (t Table) String() string {
	return fmt.Sprintf("%s (%d columns, %d rows)", t.ID, len(t.Columns), len(t.Rows))
}
