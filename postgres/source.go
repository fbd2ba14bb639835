package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"dbcopy/config"
	"dbcopy/internal"
)

const schema = "public"

// Source builds pg_dump | psql pipelines that copy tables of the public schema
// from the Read connection to the Write connection.
type Source struct {
	Read  config.Connection
	Write config.Connection

	db     *sql.DB
	ownsDB bool
}

func NewSource(read, write config.Connection) *Source {
	return &Source{Read: read, Write: write}
}

func NewSourceWithDB(db *sql.DB, read, write config.Connection) *Source {
	return &Source{Read: read, Write: write, db: db}
}

func (s *Source) Close() error {
	if s.db != nil && s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func port(conn config.Connection) int {
	if conn.Port == 0 {
		return config.DefaultPort(config.EnginePostgres)
	}
	return conn.Port
}

// dsn builds a URL connection string. SSL settings come from the PGSSLMODE
// environment variable.
func dsn(conn config.Connection) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(conn.Host, strconv.Itoa(port(conn))),
		Path:   "/" + conn.Database,
	}
	if conn.Password != "" {
		u.User = url.UserPassword(conn.User, conn.Password)
	} else if conn.User != "" {
		u.User = url.User(conn.User)
	}
	return u.String()
}

func (s *Source) conn() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}

	internal.Logger.Debug("Connecting to Postgres", "host", s.Read.Host, "database", s.Read.Database)

	db, err := sql.Open("postgres", dsn(s.Read))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	s.db = db
	s.ownsDB = true
	return db, nil
}

func (s *Source) ListTables(ctx context.Context) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = $1 ORDER BY tablename", schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}

	return tables, rows.Err()
}

func (s *Source) RowCount(ctx context.Context, table string) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	var count int64
	query := "SELECT COUNT(1) FROM " + qualified(table)
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateDatabaseCommand creates the write database with the encoding and
// collation of the read database unless it already exists.
func (s *Source) CreateDatabaseCommand(ctx context.Context) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}

	var encoding, collation string
	err = db.QueryRowContext(ctx,
		"SELECT pg_encoding_to_char(encoding), datcollate FROM pg_database WHERE datname = current_database()").
		Scan(&encoding, &collation)
	if err != nil {
		return "", fmt.Errorf("failed to read database encoding: %w", err)
	}

	exists := fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = %s", pq.QuoteLiteral(s.Write.Database))

	return fmt.Sprintf("%s psql %s --dbname=postgres -tAc %s | grep -q 1 || "+
		"%s createdb %s --encoding=%s --lc-collate=%s --template=template0 %s",
		passwordEnv(s.Write), connFlags(s.Write), shellQuote(exists),
		passwordEnv(s.Write), connFlags(s.Write), encoding, shellQuote(collation), shellQuote(s.Write.Database)), nil
}

// SchemaCommand copies the table definition without indexes, constraints or
// triggers. Those are restored by TriggersCommand after the data load.
func (s *Source) SchemaCommand(table string) string {
	return fmt.Sprintf("%s --section=pre-data --clean --if-exists %s | %s",
		s.dumpCommand(), tableFlag(table), s.importCommand())
}

func (s *Source) DataCommand(table string) string {
	return fmt.Sprintf("%s --data-only %s | %s",
		s.dumpCommand(), tableFlag(table), s.importCommand())
}

// ChunkedDataCommand pages through the table in physical row order. Chunks
// only partition the table while it is not written to during the copy.
func (s *Source) ChunkedDataCommand(table string, limit, offset int64) string {
	out := fmt.Sprintf("\\copy (SELECT * FROM %s ORDER BY ctid LIMIT %d OFFSET %d) TO STDOUT", qualified(table), limit, offset)
	in := fmt.Sprintf("\\copy %s FROM STDIN", qualified(table))

	return fmt.Sprintf("%s psql %s --dbname=%s --quiet -c %s | %s psql %s --dbname=%s --quiet --set=ON_ERROR_STOP=1 -c %s",
		passwordEnv(s.Read), connFlags(s.Read), shellQuote(s.Read.Database), shellQuote(out),
		passwordEnv(s.Write), connFlags(s.Write), shellQuote(s.Write.Database), shellQuote(in))
}

// TriggersCommand restores the post-data section: indexes, constraints and
// triggers.
func (s *Source) TriggersCommand(table string) string {
	return fmt.Sprintf("%s --section=post-data %s | %s",
		s.dumpCommand(), tableFlag(table), s.importCommand())
}

func (s *Source) dumpCommand() string {
	return fmt.Sprintf("%s pg_dump %s --dbname=%s --no-owner --no-privileges",
		passwordEnv(s.Read), connFlags(s.Read), shellQuote(s.Read.Database))
}

func (s *Source) importCommand() string {
	return fmt.Sprintf("%s psql %s --dbname=%s --quiet --set=ON_ERROR_STOP=1",
		passwordEnv(s.Write), connFlags(s.Write), shellQuote(s.Write.Database))
}

func connFlags(conn config.Connection) string {
	return fmt.Sprintf("--host=%s --port=%d --username=%s", conn.Host, port(conn), shellQuote(conn.User))
}

func passwordEnv(conn config.Connection) string {
	return "PGPASSWORD=" + shellQuote(conn.Password)
}

func qualified(table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

func tableFlag(table string) string {
	return "--table=" + shellQuote(qualified(table))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
