package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/consolidator/internal/db"
)

// CreateIndex runs FT.CREATE ON HASH for def. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def)
	if err != nil {
		return err
	}
	if err := s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error(); err != nil {
		if serverErrorContains(err, "already exists") {
			return db.ErrIndexExists
		}
		return fail(db.OpCreateIndex, def.Name, err)
	}
	return nil
}

// IndexExists probes FT.INFO. An "unknown index" reply means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case serverErrorContains(err, "unknown index"), serverErrorContains(err, "no such index"):
		return false, nil
	default:
		return false, fail(db.OpIndexInfo, name, err)
	}
}

// createArgs renders the FT.CREATE arguments after the command name.
func createArgs(def *db.IndexDefinition) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("index %s: %w", def.Name, err)
	}
	args := []string{def.Name, "ON", "HASH", "PREFIX", "1", def.Prefix, "SCHEMA"}
	for _, f := range def.Fields {
		args = append(args, f.Name)
		switch f.Type {
		case db.FieldTag:
			args = append(args, "TAG")
			if f.Separator != "" {
				args = append(args, "SEPARATOR", f.Separator)
			}
			if f.CaseSensitive {
				args = append(args, "CASESENSITIVE")
			}
		case db.FieldNumeric:
			args = append(args, "NUMERIC")
		case db.FieldVector:
			attrs := []string{
				"TYPE", "FLOAT32",
				"DIM", strconv.Itoa(f.Dim),
				"DISTANCE_METRIC", "COSINE",
				"M", strconv.Itoa(f.M),
				"EF_CONSTRUCTION", strconv.Itoa(f.EFConstruct),
			}
			args = append(args, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
			args = append(args, attrs...)
		}
	}
	return args, nil
}
