// Package importer reads sensor readings from uploaded spreadsheets.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Column names, after normalisation
const (
	ColumnID            = "ID_COLETA"
	ColumnSensor        = "SENSOR"
	ColumnValue         = "VALOR_COLETA"
	ColumnCollectedAt   = "DATA_HORA_COLETA"
	ColumnRelayStatus   = "STATUS_RELE"
	ColumnTriggerReason = "MOTIVO_ACIONAMENTO"
)

var requiredColumns = []string{ColumnSensor, ColumnValue, ColumnCollectedAt}

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")
	ErrEmptyFile         = errors.New("file has no header row")
)

// MissingColumnsError is returned when the header lacks a required column
type MissingColumnsError struct {
	Columns []string `json:"columns"`
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// RejectedRow is one spreadsheet row that could not be imported.
// Row is the 1-based line number in the sheet, header included.
type RejectedRow struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Result is the outcome of parsing one file
type Result struct {
	BatchID   string              `json:"batch_id"`
	Format    Format              `json:"format"`
	Sheet     string              `json:"sheet,omitempty"`
	Columns   []string            `json:"columns"`
	TotalRows int                 `json:"total_rows"`
	Accepted  []irgmodels.Reading `json:"accepted"`
	Rejected  []RejectedRow       `json:"rejected"`
}

// Preview returns a copy of the result limited to the first n accepted readings
func (r *Result) Preview(n int) *Result {
	out := *r
	if n >= 0 && len(out.Accepted) > n {
		out.Accepted = out.Accepted[:n]
	}
	return &out
}

// Options configures an Importer
type Options struct {
	// SheetName selects the xlsx sheet; the first sheet is used when empty
	SheetName string
	// Location is applied to timestamps without a zone
	Location *time.Location
}

// Importer parses .xlsx and .csv uploads into readings
type Importer struct {
	sheetName string
	loc       *time.Location
}

func New(opts Options) *Importer {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{sheetName: opts.SheetName, loc: loc}
}

// DetectFormat picks the parser from the file extension
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	}
	return "", ErrUnsupportedFormat
}

// Parse reads every data row of the file. Row-level problems are collected in
// Result.Rejected; only file-level problems are returned as errors.
func (im *Importer) Parse(r io.Reader, filename string) (*Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	var (
		rows  [][]string
		sheet string
	)
	switch format {
	case FormatXLSX:
		rows, sheet, err = im.readXLSX(r)
	case FormatCSV:
		rows, err = readCSV(r)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	index, columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	res := &Result{
		BatchID:  uuid.NewString(),
		Format:   format,
		Sheet:    sheet,
		Columns:  columns,
		Accepted: make([]irgmodels.Reading, 0, len(rows)-1),
		Rejected: make([]RejectedRow, 0),
	}
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		res.TotalRows++
		reading, rejected := im.parseRow(row, index, format, i+2)
		if rejected != nil {
			res.Rejected = append(res.Rejected, *rejected)
			continue
		}
		res.Accepted = append(res.Accepted, reading)
	}
	return res, nil
}

func (im *Importer) readXLSX(r io.Reader) ([][]string, string, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := im.sheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, "", ErrEmptyFile
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, sheet, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	// drop a UTF-8 BOM
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if first, _ := br.Peek(4096); detectSemicolon(first) {
		cr.Comma = ';'
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

// detectSemicolon reports whether the header line is semicolon separated,
// as spreadsheets with a decimal comma export it.
func detectSemicolon(head []byte) bool {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','})
}

func normalizeHeader(h string) string {
	h = strings.ToUpper(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(h)
	return strings.Trim(h, "_")
}

func mapHeader(header []string) (map[string]int, []string, error) {
	index := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, dup := index[name]; !dup {
			index[name] = i
			columns = append(columns, name)
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &MissingColumnsError{Columns: missing}
	}
	return index, columns, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (im *Importer) parseRow(row []string, index map[string]int, format Format, line int) (irgmodels.Reading, *RejectedRow) {
	reject := func(column, value string, err error) (irgmodels.Reading, *RejectedRow) {
		return irgmodels.Reading{}, &RejectedRow{Row: line, Column: column, Value: value, Reason: err.Error()}
	}

	var reading irgmodels.Reading

	if raw := cell(row, index, ColumnID); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSuffix(raw, ".0"), 10, 64)
		if err != nil || id <= 0 {
			return reject(ColumnID, raw, fmt.Errorf("id must be a positive integer"))
		}
		reading.ID = id
	}

	reading.SensorName = cell(row, index, ColumnSensor)
	if reading.SensorName == "" {
		return reject(ColumnSensor, "", fmt.Errorf("sensor name is empty"))
	}

	raw := cell(row, index, ColumnValue)
	value, err := irgmodels.ParseValue(raw)
	if err != nil {
		return reject(ColumnValue, raw, err)
	}
	reading.Value = value

	raw = cell(row, index, ColumnCollectedAt)
	ts, err := im.parseTimestamp(raw, format)
	if err != nil {
		return reject(ColumnCollectedAt, raw, err)
	}
	reading.CollectedAt = ts

	raw = cell(row, index, ColumnRelayStatus)
	status, err := irgmodels.ParseRelayStatus(raw)
	if err != nil {
		return reject(ColumnRelayStatus, raw, err)
	}
	reading.RelayStatus = status

	reading.TriggerReason = cell(row, index, ColumnTriggerReason)
	return reading, nil
}

// parseTimestamp also accepts xlsx date serials, whose wall clock is read in the importer location
func (im *Importer) parseTimestamp(raw string, format Format) (time.Time, error) {
	ts, err := irgmodels.ParseCollectedAt(raw, im.loc)
	if err == nil || format != FormatXLSX {
		return ts, err
	}
	serial, perr := strconv.ParseFloat(raw, 64)
	if perr != nil || serial <= 0 {
		return time.Time{}, err
	}
	wall, perr := excelize.ExcelDateToTime(serial, false)
	if perr != nil {
		return time.Time{}, err
	}
	wall = wall.Round(time.Second)
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, im.loc), nil
}
