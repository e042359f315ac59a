package analysis

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Namer gives the display name of a feature key.
type Namer interface {
	DisplayName(tt TestType, key string) string
}

const notAvailable = "N/A"

// UnionKeys returns every non-metadata feature key found in files, sorted.
func UnionKeys(files []FileResult) []string {
	seen := map[string]bool{}
	var keys []string
	for _, f := range files {
		for _, k := range f.Features.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// TableColumn is the header cell for one file.
type TableColumn struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	PlotPath string `json:"plot_path,omitempty"`
	HasPlot  bool   `json:"has_plot"`
}

// TableRow is one feature across the files of a page.
type TableRow struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// FeatureTable is the projection rendered by the results view.
type FeatureTable struct {
	Page    Page          `json:"page"`
	Columns []TableColumn `json:"columns"`
	Rows    []TableRow    `json:"rows"`
}

// BuildTable lays out page number of files: rows are the sorted union of
// keys over all files, columns the files on the page.
func BuildTable(tt TestType, namer Namer, files []FileResult, number int) FeatureTable {
	page := Paginate(files, number, PageSize)
	keys := UnionKeys(files)

	cols := make([]TableColumn, 0, len(page.Files))
	for i, f := range page.Files {
		cols = append(cols, TableColumn{
			Index:    page.Offset + i,
			Filename: f.Filename,
			PlotPath: f.PlotPath,
			HasPlot:  f.PlotPath != "",
		})
	}

	rows := make([]TableRow, 0, len(keys))
	for _, k := range keys {
		row := TableRow{Key: k, Name: namer.DisplayName(tt, k), Values: make([]string, 0, len(page.Files))}
		for _, f := range page.Files {
			v, ok := f.Features.Get(k)
			if !ok || v == nil {
				row.Values = append(row.Values, notAvailable)
				continue
			}
			row.Values = append(row.Values, FormatValue(v))
		}
		rows = append(rows, row)
	}

	return FeatureTable{Page: page, Columns: cols, Rows: rows}
}

// FormatValue renders numbers with 4 decimals and everything else as text.
// nil becomes the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', 4, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 4, 32)
	case int:
		return strconv.FormatFloat(float64(x), 'f', 4, 64)
	case int64:
		return strconv.FormatFloat(float64(x), 'f', 4, 64)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// ResultsCSV writes one row per file. Columns follow the first file's key
// order; a key the other files lack is an empty cell.
func ResultsCSV(tt TestType, namer Namer, files []FileResult) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	keys := files[0].Features.Keys()

	header := make([]string, len(keys))
	for i, k := range keys {
		header[i] = namer.DisplayName(tt, k)
	}
	records := [][]string{header}
	for _, f := range files {
		records = append(records, valuesFor(f, keys))
	}
	return writeCSV(records)
}

// FileCSV is the download for a single file.
func FileCSV(tt TestType, namer Namer, file FileResult) (string, error) {
	return ResultsCSV(tt, namer, []FileResult{file})
}

// AggregateCSV is the "download all" table: Filename followed by the sorted
// union of keys.
func AggregateCSV(tt TestType, namer Namer, files []FileResult) (string, error) {
	keys := UnionKeys(files)

	header := make([]string, 0, len(keys)+1)
	header = append(header, "Filename")
	for _, k := range keys {
		header = append(header, namer.DisplayName(tt, k))
	}
	records := [][]string{header}
	for _, f := range files {
		records = append(records, append([]string{f.Filename}, valuesFor(f, keys)...))
	}
	return writeCSV(records)
}

func valuesFor(f FileResult, keys []string) []string {
	row := make([]string, len(keys))
	for i, k := range keys {
		if v, ok := f.Features.Get(k); ok {
			row[i] = FormatValue(v)
		}
	}
	return row
}

func writeCSV(records [][]string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return sb.String(), nil
}
