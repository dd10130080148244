package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

// DefaultExportMaxRows caps an export when the caller does not supply a limit.
const DefaultExportMaxRows = 10000

// ExportResult is a rendered export artifact ready to be served or stored.
type ExportResult struct {
	Format      model.ExportFormat
	ContentType string
	Filename    string
	RowCount    int
	Data        []byte
}

var exportHeader = []string{
	"id", "code", "action", "outcome", "timestamp", "details",
	"user", "ip_address", "user_agent", "duration_ms", "metadata",
}

// Export renders the filtered log set in the requested format, capped at
// maxRows entries.
func (uc *logUC) Export(ctx context.Context, filter model.LogFilter, format model.ExportFormat, maxRows int) (*ExportResult, error) {
	if maxRows <= 0 || maxRows > DefaultExportMaxRows {
		maxRows = DefaultExportMaxRows
	}
	entries, err := uc.logs.ListMatching(ctx, repository.NoTX, filter, maxRows)
	if err != nil {
		return nil, err
	}
	return RenderExport(entries, format)
}

// RenderExport formats an already-filtered set of entries.
func RenderExport(entries []*model.UsageLog, format model.ExportFormat) (*ExportResult, error) {
	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case model.FormatCSV:
		data, err := renderCSV(entries)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			Format:      model.FormatCSV,
			ContentType: "text/csv; charset=utf-8",
			Filename:    "activity-logs-" + stamp + ".csv",
			RowCount:    len(entries),
			Data:        data,
		}, nil
	case model.FormatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			Format:      model.FormatJSON,
			ContentType: "application/json",
			Filename:    "activity-logs-" + stamp + ".json",
			RowCount:    len(entries),
			Data:        data,
		}, nil
	case model.FormatXLSX:
		data, err := renderXLSX(entries)
		if err != nil {
			return nil, err
		}
		return &ExportResult{
			Format:      model.FormatXLSX,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Filename:    "activity-logs-" + stamp + ".xlsx",
			RowCount:    len(entries),
			Data:        data,
		}, nil
	}
	return nil, domain.ErrInvalidArgument
}

// renderCSV writes RFC 4180 output: encoding/csv quotes fields containing
// commas, quotes or newlines and doubles internal quotes.
func renderCSV(entries []*model.UsageLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write(exportRow(e)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(entries []*model.UsageLog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Activity Logs"
	f.SetSheetName("Sheet1", sheet)

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for i, e := range entries {
		row := exportRow(e)
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := sw.SetRow(cell, cells); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportRow(e *model.UsageLog) []string {
	duration := ""
	if e.DurationMS != nil {
		duration = strconv.FormatInt(*e.DurationMS, 10)
	}
	return []string{
		e.ID,
		e.Code,
		string(e.Action),
		string(e.Outcome),
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Details,
		e.User,
		e.IPAddress,
		e.UserAgent,
		duration,
		flattenMetadata(e.Metadata),
	}
}

// flattenMetadata renders the metadata map as stable `k=v;k=v` pairs.
func flattenMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(';')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(m[k])
	}
	return buf.String()
}
