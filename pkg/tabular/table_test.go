package tabular

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optikit/optikit/pkg/contract"
)

func TestPayloadRoundTrip(t *testing.T) {
	table := Table{
		ID:      "Demand.csv",
		Columns: []string{"a", "b"},
		Rows:    [][]any{{1.0, 2.0}, {3.0, 4.0}},
	}

	payload, err := table.Payload()
	require.Nil(t, err)

	raw, jerr := json.Marshal(payload)
	require.NoError(t, jerr)

	var decoded Payload
	require.NoError(t, json.Unmarshal(raw, &decoded))

	back, err := FromPayload(decoded)
	require.Nil(t, err)
	assert.Equal(t, table.Columns, back.Columns)
	assert.Equal(t, table.Rows, back.Rows)
}

func TestValidateRejectsMalformedTables(t *testing.T) {
	scenarios := []struct {
		name  string
		table Table
	}{
		{
			name:  "missing id",
			table: Table{Columns: []string{"a"}},
		},
		{
			name:  "no columns",
			table: Table{ID: "x.csv"},
		},
		{
			name:  "empty column name",
			table: Table{ID: "x.csv", Columns: []string{"a", ""}},
		},
		{
			name:  "duplicate column",
			table: Table{ID: "x.csv", Columns: []string{"a", "a"}},
		},
		{
			name: "ragged row",
			table: Table{
				ID:      "x.csv",
				Columns: []string{"a", "b"},
				Rows:    [][]any{{1.0}},
			},
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.name, func(t *testing.T) {
			err := scenario.table.Validate()
			require.NotNil(t, err)
			assert.Equal(t, contract.ErrorCodeBadRequest, err.Code)
		})
	}
}

func TestReadCSVParsesNumbersAndPreservesOrder(t *testing.T) {
	in := "Resource,Capacity,Comment\nAssembly,460,\nPainting,350,tight\n"

	table, err := ReadCSV("Availability.csv", strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"Resource", "Capacity", "Comment"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{"Assembly", 460.0, nil}, table.Rows[0])
	assert.Equal(t, []any{"Painting", 350.0, "tight"}, table.Rows[1])
}

func TestCSVRoundTrip(t *testing.T) {
	table := Table{
		ID:      "solution.csv",
		Columns: []string{"QtyToProduce", "UnfulfilledDemand"},
		Rows:    [][]any{{800.0, nil}, {1600.0, 50.0}},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	back, err := ReadCSV("solution.csv", &buf)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, back.Columns)
	assert.Equal(t, table.Rows, back.Rows)
}

func TestReadCSVDirPicksOnlyCSVFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ProductInfo.csv"), []byte("Name,Qty\nCAR1,10\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Availability.csv"), []byte("Resource,Capacity\nAssembly,460\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600))

	tables, err := ReadCSVDir(dir)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	// sorted by file name
	assert.Equal(t, "Availability.csv", tables[0].ID)
	assert.Equal(t, "ProductInfo.csv", tables[1].ID)
}

func TestWriteCSVDirAppendsExtension(t *testing.T) {
	dir := t.TempDir()
	tables := []Table{{ID: "kpis", Columns: []string{"Name", "Value"}, Rows: [][]any{{"Projected Profit", 71200.0}}}}

	require.NoError(t, WriteCSVDir(dir, tables))

	raw, err := os.ReadFile(filepath.Join(dir, "kpis.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Name,Value\nProjected Profit,71200\n", string(raw))
}
