package exporting

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
	"colmet/pkg/utils"
)

// PostgresSink copies records into one table per schema, created on first
// use. Unsigned counters are stored as BIGINT.
type PostgresSink struct {
	// pgx.Conn is not safe for concurrent use.
	mu     sync.Mutex
	conn   *pgx.Conn
	tables map[string]bool
}

func NewPostgresSink(ctx context.Context, uri string) (*PostgresSink, error) {
	conn, err := pgx.Connect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresSink{conn: conn, tables: make(map[string]bool)}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Push(ctx context.Context, recs []*counters.Unpacked) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySchema := make(map[*counters.Schema][][]any)
	var order []*counters.Schema
	for _, r := range recs {
		if _, ok := bySchema[r.Schema()]; !ok {
			order = append(order, r.Schema())
		}
		bySchema[r.Schema()] = append(bySchema[r.Schema()], pgRow(r))
	}

	for _, schema := range order {
		if err := s.ensureTable(ctx, schema); err != nil {
			return err
		}
		n, err := s.conn.CopyFrom(ctx, pgx.Identifier{schema.Name()}, pgColumns(schema),
			pgx.CopyFromRows(bySchema[schema]))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", schema.Name(), err)
		}
		log.Debugf("Copied %d rows into %s", n, schema.Name())
	}
	return nil
}

func (s *PostgresSink) ensureTable(ctx context.Context, schema *counters.Schema) error {
	if s.tables[schema.Name()] {
		return nil
	}
	if _, err := s.conn.Exec(ctx, CreateTableSQL(schema)); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Name(), err)
	}
	s.tables[schema.Name()] = true
	return nil
}

func (s *PostgresSink) Close() error {
	return s.conn.Close(context.Background())
}

// CreateTableSQL returns the DDL of the table storing schema's records.
func CreateTableSQL(schema *counters.Schema) string {
	var cols []string
	for _, f := range schema.Fields() {
		cols = append(cols, pgx.Identifier{f.Name}.Sanitize()+" "+pgType(f.Type))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgx.Identifier{schema.Name()}.Sanitize(), strings.Join(cols, ", "))
}

func pgType(t counters.FieldType) string {
	switch t.Kind() {
	case counters.Unsigned, counters.Signed:
		return "BIGINT"
	case counters.Float:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func pgColumns(schema *counters.Schema) []string {
	fields := schema.Fields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols
}

func pgRow(r *counters.Unpacked) []any {
	fields := r.Schema().Fields()
	row := make([]any, len(fields))
	for i, f := range fields {
		v := r.Value(f.Name)
		if v == nil {
			continue
		}
		switch f.Type.Kind() {
		case counters.Unsigned:
			row[i] = int64(utils.ToUint64(v))
		default:
			row[i] = v
		}
	}
	return row
}
