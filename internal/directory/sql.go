package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
	"github.com/dmitrijs2005/tenantadmin/internal/dbx"
	"github.com/dmitrijs2005/tenantadmin/internal/tscodec"
)

const (
	selectDocumentQuery = `SELECT fields FROM documents WHERE collection = ? AND id = ?`

	selectCollectionQuery = `SELECT id, fields FROM documents WHERE collection = ? ORDER BY id`

	upsertDocumentQuery = `INSERT INTO documents (collection, id, fields)
		VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET fields = excluded.fields, updated_at = CURRENT_TIMESTAMP`

	deleteDocumentQuery = `DELETE FROM documents WHERE collection = ? AND id = ?`
)

// SQLStore keeps documents in a single "documents" table. Fields are stored
// as JSON text with timestamps in marker form.
type SQLStore struct {
	db      *sql.DB
	dialect dbx.Dialect
}

func NewSQLStore(db *sql.DB, dialect dbx.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (Document, error) {
	fields, err := s.get(ctx, s.db, collection, id)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *SQLStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.upsert(ctx, s.db, collection, id, fields)
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := s.get(ctx, tx, collection, id)
		if err != nil {
			return err
		}
		return s.upsert(ctx, tx, collection, id, MergeFields(cur, fields))
	})
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	return s.delete(ctx, s.db, collection, id)
}

func (s *SQLStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectCollectionQuery), collection)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return docs, nil
}

func (s *SQLStore) NewBatch() Batch {
	return &batch{apply: s.apply}
}

// apply runs the ops of one batch in a single transaction.
func (s *SQLStore) apply(ctx context.Context, ops []op) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, o := range ops {
			var err error
			switch o.kind {
			case opSet:
				err = s.upsert(ctx, tx, o.collection, o.id, o.fields)
			case opMerge:
				cur, gerr := s.get(ctx, tx, o.collection, o.id)
				if gerr != nil && !errors.Is(gerr, common.ErrorNotFound) {
					return gerr
				}
				err = s.upsert(ctx, tx, o.collection, o.id, MergeFields(cur, o.fields))
			case opDelete:
				err = s.delete(ctx, tx, o.collection, o.id)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) get(ctx context.Context, q dbx.DBTX, collection, id string) (map[string]any, error) {
	var raw string
	err := q.QueryRowContext(ctx, s.dialect.Rebind(selectDocumentQuery), collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	return fields, nil
}

func (s *SQLStore) upsert(ctx context.Context, q dbx.DBTX, collection, id string, fields map[string]any) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	if _, err := q.ExecContext(ctx, s.dialect.Rebind(upsertDocumentQuery), collection, id, raw); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *SQLStore) delete(ctx context.Context, q dbx.DBTX, collection, id string) error {
	if _, err := q.ExecContext(ctx, s.dialect.Rebind(deleteDocumentQuery), collection, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(tscodec.EncodeFields(fields))
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(b), nil
}

func decodeFields(raw string) (map[string]any, error) {
	var f tscodec.Fields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	out := tscodec.DecodeFields(f)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
