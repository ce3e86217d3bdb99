package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/renoted/renoted/internal/db"
)

// CreateIndex issues FT.CREATE for the given definition. Returns
// db.ErrIndexExists if an index with the same name already exists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid index definition: %w", err)
	}

	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	return nil
}

// DropIndex removes an index, keeping the indexed hashes. Returns
// db.ErrIndexNotFound for an unknown index.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes for an index via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") ||
			isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func buildCreateArgs(def *db.IndexDefinition) ([]string, error) {
	args := []string{def.Name, "ON", "HASH"}

	if len(def.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(def.Prefixes)))
		args = append(args, def.Prefixes...)
	}

	args = append(args, "SCHEMA")
	for _, f := range def.Fields {
		args = append(args, f.Name)
		if f.Alias != "" {
			args = append(args, "AS", f.Alias)
		}

		switch f.Type {
		case db.IndexFieldText:
			args = append(args, "TEXT")
		case db.IndexFieldTag:
			args = append(args, "TAG")
			if f.TagSeparator != "" {
				args = append(args, "SEPARATOR", f.TagSeparator)
			}
			if f.TagCaseSensitive {
				args = append(args, "CASESENSITIVE")
			}
		case db.IndexFieldNumeric:
			args = append(args, "NUMERIC")
		default:
			return nil, fmt.Errorf("unsupported field type %d for field %q", f.Type, f.Name)
		}
	}

	return args, nil
}
