package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/propharvest/internal/listing"
)

func testRecord(n string) listing.Record {
	return listing.Record{
		URL:             "https://www.merrjep.al/njoftim/" + n,
		Name:            "Apartament " + n,
		Description:     "Pershkrim",
		Address:         "Rruga e Kavajes",
		Price:           "300 EUR",
		Area:            "50 m²",
		Characteristics: "Sipërfaqe:: 50 m², Kati:: 2",
		PropertyType:    "Apartamente",
		TransactionType: "Jepet me qera",
		Latitude:        "41.3275",
		Longitude:       "19.8187",
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter_Formats(t *testing.T) {
	tests := []struct {
		format Format
		want   any
	}{
		{FormatXLSX, &XLSXWriter{}},
		{FormatJSON, &JSONWriter{}},
		{FormatJSONL, &JSONLWriter{}},
		{FormatYAML, &YAMLWriter{}},
	}
	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, tt.format)
		if err != nil {
			t.Fatalf("NewWriter(%s) error = %v", tt.format, err)
		}
		if reflect.TypeOf(w) != reflect.TypeOf(tt.want) {
			t.Errorf("NewWriter(%s) = %T, want %T", tt.format, w, tt.want)
		}
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

func TestNewWriter_WithOptions(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, FormatJSON, WithPretty(true), WithIndent("\t"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	_ = w.Write(testRecord("1"))
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\t\t\"url\"") {
		t.Errorf("expected tab indentation, got %s", buf.String())
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_SingleRecordIsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")

	if err := w.Write(testRecord("1")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var result []listing.Record
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(result) != 1 || result[0] != testRecord("1") {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestJSONWriter_WriteAll_Compact(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	if err := w.WriteAll([]listing.Record{testRecord("1"), testRecord("2")}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 {
		t.Errorf("compact output should be one line, got %q", out)
	}
	if !strings.HasPrefix(out, `[{"url":"https://www.merrjep.al/njoftim/1"`) {
		t.Errorf("unexpected field order: %s", out)
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected [], got %q", buf.String())
	}
}

func TestJSONWriter_FlushThenCloseWritesOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")
	_ = w.Write(testRecord("1"))
	_ = w.Flush()
	_ = w.Close()

	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected a single document, got %q", buf.String())
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_OneLinePerRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := w.WriteAll([]listing.Record{testRecord("1"), testRecord("2")}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec listing.Record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("line 2 is not valid JSON: %v", err)
	}
	if rec.URL != "https://www.merrjep.al/njoftim/2" {
		t.Errorf("line 2 URL = %q", rec.URL)
	}
}

func TestJSONLWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONLWriter(buf).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_WriteAll(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	if err := w.WriteAll([]listing.Record{testRecord("1"), testRecord("2")}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var result []listing.Record
	if err := yaml.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(result) != 2 || result[1].Name != "Apartament 2" {
		t.Errorf("unexpected result: %+v", result)
	}
	if !strings.Contains(buf.String(), "property_type: Apartamente") {
		t.Errorf("expected snake_case keys, got %s", buf.String())
	}
}

// --- XLSXWriter Tests ---

func readSheet(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", sheet, err)
	}
	return rows
}

func TestXLSXWriter_HeaderAndRows(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewXLSXWriter(buf, DefaultSheetName)

	recs := []listing.Record{testRecord("1"), testRecord("2")}
	if err := w.WriteAll(recs); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows := readSheet(t, buf.Bytes(), "Properties")
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	wantHeader := []string{"URL", "Name", "Description", "Address", "Price", "Area",
		"Characteristics", "PropertyType", "TransactionType", "Latitude", "Longitude"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v", rows[0])
	}
	if !reflect.DeepEqual(rows[2], recs[1].Values()) {
		t.Errorf("row 2 = %v, want %v", rows[2], recs[1].Values())
	}
}

func TestXLSXWriter_CustomSheet(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, FormatXLSX, WithSheetName("Listings"))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	_ = w.Write(testRecord("1"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"Listings"}) {
		t.Errorf("sheets = %v", got)
	}
}

func TestXLSXWriter_EmptyHasHeaderOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewXLSXWriter(buf, "").Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	rows := readSheet(t, buf.Bytes(), DefaultSheetName)
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

// --- FileSink Tests ---

func TestFileName(t *testing.T) {
	tests := []struct {
		baseURL string
		format  Format
		want    string
	}{
		{
			"https://www.merrjep.al/njoftime/imobiliare-vendbanime/cimer-cimere/me-qera",
			FormatXLSX,
			"www.merrjep.al_njoftime_imobiliare-vendbanime_cimer-cimere_me-qera.xlsx",
		},
		{"http://example.com/a/", FormatJSON, "example.com_a_.json"},
		{"example.com", FormatYAML, "example.com.yaml"},
	}
	for _, tt := range tests {
		if got := FileName(tt.baseURL, tt.format); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.baseURL, got, tt.want)
		}
	}
}

func TestFileSink_WriteCreatesDirectoryAndOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	sink := NewFileSink(dir, FormatXLSX)
	baseURL := "https://www.merrjep.al/njoftime/me-qera"

	if err := sink.Write(context.Background(), baseURL,
		[]listing.Record{testRecord("1"), testRecord("2"), testRecord("3")}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := sink.Write(context.Background(), baseURL, []listing.Record{testRecord("4")}); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	path := filepath.Join(dir, "www.merrjep.al_njoftime_me-qera.xlsx")
	if sink.Path(baseURL) != path {
		t.Errorf("Path() = %q, want %q", sink.Path(baseURL), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output file not created: %v", err)
	}
	rows := readSheet(t, data, DefaultSheetName)
	if len(rows) != 2 || rows[1][0] != "https://www.merrjep.al/njoftim/4" {
		t.Errorf("expected the second write to replace the first, got %v", rows)
	}
}

func TestFileSink_WriteFailure(t *testing.T) {
	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "output")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := NewFileSink(blocker, FormatJSON)
	if err := sink.Write(context.Background(), "https://example.com/x", nil); err == nil {
		t.Error("expected error writing into a non-directory")
	}
}

func TestFileSink_Name(t *testing.T) {
	if got := NewFileSink("", FormatJSONL).Name(); got != "file:jsonl" {
		t.Errorf("Name() = %q", got)
	}
}
