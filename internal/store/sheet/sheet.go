// Package sheet implements the record store on an xlsx workbook, one row
// per fingerprint. The whole workbook is loaded at open and written back on
// every mutation; a version column provides the optimistic-concurrency
// check. Rows are appended, never removed.
package sheet

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"job_applier/internal/domain"
	"job_applier/internal/store"
)

const sheetName = "Applications"

var headers = []string{
	"Fingerprint",
	"Source",
	"External ID",
	"Job Title",
	"Company",
	"Location",
	"Salary Min",
	"Salary Max",
	"Job Description",
	"Job URL",
	"Posted At",
	"Sources Seen",
	"Application Status",
	"Resume Variant",
	"Tailored Resume",
	"Attempt Count",
	"Last Error",
	"Ambiguous",
	"Version",
	"Date Added",
	"Last Updated",
}

type RecordStore struct {
	mu      sync.Mutex
	path    string
	records map[string]domain.ApplicationRecord
	rowOf   map[string]int // fingerprint -> 1-based sheet row
	nextRow int
}

// Open loads an existing workbook or creates a fresh one with the header
// row in place.
func Open(path string) (*RecordStore, error) {
	s := &RecordStore{
		path:    path,
		records: make(map[string]domain.ApplicationRecord),
		rowOf:   make(map[string]int),
		nextRow: 2,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.create(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("load workbook: %w", err)
	}
	return s, nil
}

func (s *RecordStore) create() error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetName)
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return err
	}
	return f.SaveAs(s.path)
}

func (s *RecordStore) load() error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return err
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		rec, err := fromRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		s.records[rec.Fingerprint] = rec
		s.rowOf[rec.Fingerprint] = i + 1
	}
	s.nextRow = len(rows) + 1
	return nil
}

func (s *RecordStore) Get(_ context.Context, fingerprint string) (*domain.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *RecordStore) Upsert(_ context.Context, rec *domain.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.Fingerprint]
	if ok {
		if existing.Version != rec.Version {
			return domain.ErrStoreConflict
		}
	} else if rec.Version != 0 {
		return domain.ErrStoreConflict
	}

	rec.Version++
	stored := cloneRecord(*rec)
	s.records[rec.Fingerprint] = stored

	row, seen := s.rowOf[rec.Fingerprint]
	if !seen {
		row = s.nextRow
	}
	if err := s.writeRow(row, &stored); err != nil {
		// Roll back the in-memory state so the caller may retry cleanly.
		if ok {
			s.records[rec.Fingerprint] = existing
		} else {
			delete(s.records, rec.Fingerprint)
		}
		rec.Version--
		return fmt.Errorf("write workbook: %w", err)
	}
	if !seen {
		s.rowOf[rec.Fingerprint] = row
		s.nextRow++
	}
	return nil
}

func (s *RecordStore) Query(_ context.Context, f store.Filter) ([]domain.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ApplicationRecord
	for _, rec := range s.records {
		if f.Matches(&rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (s *RecordStore) writeRow(row int, rec *domain.ApplicationRecord) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := toRow(rec)
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return err
	}
	return f.Save()
}

func toRow(rec *domain.ApplicationRecord) []interface{} {
	return []interface{}{
		rec.Fingerprint,
		rec.SourceName,
		rec.ExternalID,
		rec.Title,
		rec.Company,
		rec.Location,
		floatCell(rec.SalaryMin),
		floatCell(rec.SalaryMax),
		rec.Description,
		rec.URL,
		timeCell(rec.PostedAt),
		strings.Join(rec.SourcesSeen, ";"),
		string(rec.Status),
		strCell(rec.ResumeVariantRef),
		strCell(rec.TailoredResume),
		strconv.Itoa(rec.AttemptCount),
		strCell(rec.LastError),
		strconv.FormatBool(rec.Ambiguous),
		strconv.FormatInt(rec.Version, 10),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.LastUpdatedAt.UTC().Format(time.RFC3339),
	}
}

func fromRow(row []string) (domain.ApplicationRecord, error) {
	var rec domain.ApplicationRecord
	if len(row) < len(headers) {
		padded := make([]string, len(headers))
		copy(padded, row)
		row = padded
	}

	rec.Fingerprint = row[0]
	if rec.Fingerprint == "" {
		return rec, fmt.Errorf("empty fingerprint")
	}
	rec.SourceName = row[1]
	rec.ExternalID = row[2]
	rec.Title = row[3]
	rec.Company = row[4]
	rec.Location = row[5]
	rec.SalaryMin = parseFloat(row[6])
	rec.SalaryMax = parseFloat(row[7])
	rec.Description = row[8]
	rec.URL = row[9]
	rec.PostedAt = parseTime(row[10])
	if row[11] != "" {
		rec.SourcesSeen = strings.Split(row[11], ";")
	}
	rec.Status = domain.Status(row[12])
	rec.ResumeVariantRef = parseStr(row[13])
	rec.TailoredResume = parseStr(row[14])
	rec.AttemptCount, _ = strconv.Atoi(row[15])
	rec.LastError = parseStr(row[16])
	rec.Ambiguous = row[17] == "true"
	rec.Version, _ = strconv.ParseInt(row[18], 10, 64)
	if rec.Version == 0 {
		rec.Version = 1
	}
	if t := parseTime(row[19]); t != nil {
		rec.CreatedAt = *t
	}
	if t := parseTime(row[20]); t != nil {
		rec.LastUpdatedAt = *t
	}
	return rec, nil
}

func cloneRecord(rec domain.ApplicationRecord) domain.ApplicationRecord {
	out := rec
	out.SourcesSeen = append([]string(nil), rec.SourcesSeen...)
	return out
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func strCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
