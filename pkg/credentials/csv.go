package credentials

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	csvTenantColumn = "hotel_database"
	csvSecretColumn = "password"
)

// CSVSource reads records from a CSV file with a header row containing the
// hotel_database and password columns. The file is read on every call, so
// edits take effect without a restart.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Lookup(_ context.Context, tenant string) (Record, error) {
	records, err := s.read()
	if err != nil {
		return Record{}, err
	}
	for _, rec := range records {
		if rec.Tenant == tenant {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %q", ErrTenantNotFound, tenant)
}

func (s *CSVSource) List(_ context.Context) ([]string, error) {
	records, err := s.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.Tenant)
	}
	return names, nil
}

func (s *CSVSource) read() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer f.Close()

	records, err := ParseCSV(f)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, fmt.Errorf("%s: %w", s.path, err))
	}
	return records, nil
}

// ParseCSV reads credential records from r. Rows with an empty tenant name
// are skipped; when a tenant appears twice the first row wins.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}

	tenantIdx, secretIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case csvTenantColumn:
			tenantIdx = i
		case csvSecretColumn:
			secretIdx = i
		}
	}
	if tenantIdx < 0 || secretIdx < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", csvTenantColumn, csvSecretColumn)
	}

	var (
		records []Record
		seen    = make(map[string]struct{})
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if tenantIdx >= len(row) || secretIdx >= len(row) {
			continue
		}
		tenant := strings.TrimSpace(row[tenantIdx])
		if tenant == "" {
			continue
		}
		if _, dup := seen[tenant]; dup {
			continue
		}
		seen[tenant] = struct{}{}
		records = append(records, Record{Tenant: tenant, Secret: strings.TrimSpace(row[secretIdx])})
	}
	return records, nil
}
