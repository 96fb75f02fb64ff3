package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableData(t *testing.T) {
	table := NewTableData("Name", "Path", "Size")

	assert.Equal(t, []string{"Name", "Path", "Size"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("docs", "/docs", "-")
	table.AddRow("a.txt", "/docs/a.txt", "42")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"docs", "/docs", "-"}, rows[0])
	assert.Equal(t, []string{"a.txt", "/docs/a.txt", "42"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Name", "Value")
	table.AddRow("key1", "value1")
	table.AddRow("key2", "value2")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "VALUE")
	assert.Contains(t, output, "key1")
	assert.Contains(t, output, "value2")
}

func TestPrinterJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatJSON, false)

	err := printer.Print(map[string]string{"name": "docs"})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "docs", decoded["name"])
}

func TestPrinterTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, false)

	// A plain map doesn't implement TableRenderer
	err := printer.Print(map[string]int{"count": 3})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "count")
}

func TestPrinterMessages(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, false)

	printer.Println("plain message")
	printer.Success("success message")
	printer.Error("error message")

	output := buf.String()
	assert.Contains(t, output, "plain message")
	assert.Contains(t, output, "success message")
	assert.Contains(t, output, "error message")
}

func TestDefaultPrinter(t *testing.T) {
	printer := DefaultPrinter()
	assert.NotNil(t, printer)
	assert.Equal(t, FormatTable, printer.Format())
}
