package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"photopipe/internal/domain"
	"photopipe/internal/infra"
	"photopipe/internal/sqlinline"
)

// RecordRepositoryPG implements domain.RecordStore on PostgreSQL.
type RecordRepositoryPG struct {
	db infra.SQLExecutor
}

// NewRecordRepository constructs a record repository over a marker-aware executor.
func NewRecordRepository(db infra.SQLExecutor) *RecordRepositoryPG {
	return &RecordRepositoryPG{db: db}
}

// EnsureSchema creates the records table when it does not exist.
func (r *RecordRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QEnsureProcessRecords); err != nil {
		return fmt.Errorf("ensure process_records: %w", err)
	}
	return nil
}

func (r *RecordRepositoryPG) Put(ctx context.Context, rec *domain.ProcessRecord) error {
	if rec == nil || rec.ProcessID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidRequest)
	}
	details, err := json.Marshal(labelDetails(rec.LabelDetails))
	if err != nil {
		return fmt.Errorf("encode label details: %w", err)
	}
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	labels := rec.Labels
	if labels == nil {
		labels = []string{}
	}
	_, err = r.db.Exec(ctx, sqlinline.QUpsertProcessRecord,
		rec.ProcessID,
		rec.UserID,
		rec.FileName,
		rec.FileType,
		rec.URL,
		rec.EnhancedFileName,
		rec.EnhancedFileType,
		rec.EnhancedURL,
		labels,
		details,
		rec.Description,
		rec.Status,
		rec.ClientCountry,
		rec.CreatedAt,
		rec.ProcessedAt,
		summary,
	)
	if err != nil {
		return fmt.Errorf("upsert process record: %w", err)
	}
	return nil
}

func (r *RecordRepositoryPG) Get(ctx context.Context, id string) (*domain.ProcessRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("record %q: %w", id, domain.ErrNotFound)
	}
	rec, err := scanRecord(r.db.QueryRow(ctx, sqlinline.QSelectProcessRecordByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select process record: %w", err)
	}
	return rec, nil
}

// List pages through records newest first. The cursor is the row offset of
// the next page.
func (r *RecordRepositoryPG) List(ctx context.Context, opts domain.ListOptions) (*domain.RecordPage, error) {
	limit := opts.NormalizedLimit()
	offset := 0
	if opts.Cursor != "" {
		n, err := strconv.Atoi(opts.Cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q: %w", opts.Cursor, domain.ErrInvalidRequest)
		}
		offset = n
	}

	// One extra row tells whether another page exists.
	rows, err := r.db.Query(ctx, sqlinline.QListProcessRecords, limit+1, offset)
	if err != nil {
		return nil, fmt.Errorf("list process records: %w", err)
	}
	defer rows.Close()

	page := &domain.RecordPage{Items: []domain.ProcessRecord{}}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan process record: %w", err)
		}
		page.Items = append(page.Items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list process records: %w", err)
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.NextCursor = strconv.Itoa(offset + limit)
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.ProcessRecord, error) {
	var rec domain.ProcessRecord
	var details, summary []byte
	if err := row.Scan(
		&rec.ProcessID,
		&rec.UserID,
		&rec.FileName,
		&rec.FileType,
		&rec.URL,
		&rec.EnhancedFileName,
		&rec.EnhancedFileType,
		&rec.EnhancedURL,
		&rec.Labels,
		&details,
		&rec.Description,
		&rec.Status,
		&rec.ClientCountry,
		&rec.CreatedAt,
		&rec.ProcessedAt,
		&summary,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.LabelDetails); err != nil {
			return nil, fmt.Errorf("decode label details: %w", err)
		}
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &rec.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
	}
	return &rec, nil
}

func labelDetails(labels []domain.Label) []domain.Label {
	if labels == nil {
		return []domain.Label{}
	}
	return labels
}

var _ domain.RecordStore = (*RecordRepositoryPG)(nil)
