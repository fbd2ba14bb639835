package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"

	"dbcopy/config"
	"dbcopy/internal"
)

// Source builds mysqldump | mysql pipelines that copy tables from the Read
// connection to the Write connection. Read queries run against Read.
type Source struct {
	Read  config.Connection
	Write config.Connection

	db     *sql.DB
	ownsDB bool
}

func NewSource(read, write config.Connection) *Source {
	return &Source{Read: read, Write: write}
}

// NewSourceWithDB uses db for read queries instead of opening a connection.
func NewSourceWithDB(db *sql.DB, read, write config.Connection) *Source {
	return &Source{Read: read, Write: write, db: db}
}

func (s *Source) Close() error {
	if s.db != nil && s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func dsn(conn config.Connection) string {
	cfg := gomysql.NewConfig()
	cfg.User = conn.User
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port(conn)))
	cfg.DBName = conn.Database
	return cfg.FormatDSN()
}

func port(conn config.Connection) int {
	if conn.Port == 0 {
		return config.DefaultPort(config.EngineMySQL)
	}
	return conn.Port
}

func (s *Source) conn() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}

	internal.Logger.Debug("Connecting to MySQL", "host", s.Read.Host, "database", s.Read.Database)

	db, err := sql.Open("mysql", dsn(s.Read))
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

	rows, err := db.QueryContext(ctx, "SHOW TABLES")
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
	query := fmt.Sprintf("SELECT COUNT(1) FROM %s", quoteIdentifier(table))
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Source) queryString(ctx context.Context, query string) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}

	var value string
	if err := db.QueryRowContext(ctx, query).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}

// CreateDatabaseCommand creates the write database with the character set and
// collation of the read database.
func (s *Source) CreateDatabaseCommand(ctx context.Context) (string, error) {
	charset, err := s.queryString(ctx, "SELECT @@character_set_database")
	if err != nil {
		return "", fmt.Errorf("failed to read character set: %w", err)
	}

	collation, err := s.queryString(ctx, "SELECT @@collation_database")
	if err != nil {
		return "", fmt.Errorf("failed to read collation: %w", err)
	}

	return fmt.Sprintf("mysql %s -e 'CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET %s COLLATE %s;'",
		connFlags(s.Write), s.Write.Database, charset, collation), nil
}

func (s *Source) SchemaCommand(table string) string {
	return fmt.Sprintf("mysqldump %s --add-drop-table --create-options --set-charset "+
		"--compress --skip-triggers --no-data %s '%s' | %s",
		connFlags(s.Read), s.Read.Database, table, s.importCommand())
}

func (s *Source) DataCommand(table string) string {
	return fmt.Sprintf("mysqldump %s --add-locks --single-transaction --extended-insert "+
		"--disable-keys --quick --no-create-info --compress --set-gtid-purged=OFF %s '%s' | %s",
		connFlags(s.Read), s.Read.Database, table, s.importCommand())
}

func (s *Source) ChunkedDataCommand(table string, limit, offset int64) string {
	return fmt.Sprintf("mysqldump %s --single-transaction --extended-insert --disable-keys "+
		"--quick --no-create-info --compress --set-gtid-purged=OFF --where='1 limit %d offset %d' %s '%s' | %s",
		connFlags(s.Read), limit, offset, s.Read.Database, table, s.importCommand())
}

// TriggersCommand strips DEFINER clauses so triggers load even when the
// definer account does not exist on the destination.
func (s *Source) TriggersCommand(table string) string {
	return fmt.Sprintf("mysqldump %s --compress --no-data --no-create-info --triggers "+
		"%s '%s' | sed 's/\\sDEFINER=`[^`]*`@`[^`]*`//g' | %s",
		connFlags(s.Read), s.Read.Database, table, s.importCommand())
}

func (s *Source) importCommand() string {
	return fmt.Sprintf("mysql %s %s", connFlags(s.Write), s.Write.Database)
}

func connFlags(conn config.Connection) string {
	return fmt.Sprintf("--port=%d --host=%s --user=%s --password='%s'",
		port(conn), conn.Host, conn.User, conn.Password)
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
