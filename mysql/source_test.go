package mysql

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"dbcopy/config"
)

var (
	readConn = config.Connection{
		Engine:   config.EngineMySQL,
		Host:     "127.0.0.1",
		User:     "test_username",
		Password: "test_password",
		Database: "test_database",
	}
	writeConn = config.Connection{
		Engine:   config.EngineMySQL,
		Host:     "127.0.0.2",
		Port:     3307,
		User:     "test_write_username",
		Password: "test_write_password",
		Database: "test_write_database",
	}
)

const writeFlags = "--port=3307 --host=127.0.0.2 --user=test_write_username --password='test_write_password'"

func newMockSource(t *testing.T) (*Source, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSourceWithDB(db, readConn, writeConn), mock
}

func TestListTables(t *testing.T) {
	source, mock := newMockSource(t)

	mock.ExpectQuery("SHOW TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_test_database"}).
			AddRow("orders").
			AddRow("users"))

	tables, err := source.ListTables(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !reflect.DeepEqual(tables, []string{"orders", "users"}) {
		t.Errorf("Unexpected tables %v", tables)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListTablesQueryError(t *testing.T) {
	source, mock := newMockSource(t)

	mock.ExpectQuery("SHOW TABLES").WillReturnError(errors.New("Access denied for user"))

	if _, err := source.ListTables(context.Background()); err == nil {
		t.Error("Expected error but got none")
	}
}

func TestRowCount(t *testing.T) {
	source, mock := newMockSource(t)

	mock.ExpectQuery("SELECT COUNT(1) FROM `table_name`").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow(27))

	count, err := source.RowCount(context.Background(), "table_name")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if count != 27 {
		t.Errorf("Expected 27, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateDatabaseCommand(t *testing.T) {
	source, mock := newMockSource(t)

	mock.ExpectQuery("SELECT @@character_set_database").
		WillReturnRows(sqlmock.NewRows([]string{"@@character_set_database"}).AddRow("test_character_set"))
	mock.ExpectQuery("SELECT @@collation_database").
		WillReturnRows(sqlmock.NewRows([]string{"@@collation_database"}).AddRow("test_collation"))

	cmd, err := source.CreateDatabaseCommand(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := "mysql " + writeFlags + " -e " +
		"'CREATE DATABASE IF NOT EXISTS `test_write_database` CHARACTER SET test_character_set COLLATE test_collation;'"
	if cmd != expected {
		t.Errorf("Expected %s, got %s", expected, cmd)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreateDatabaseCommandQueryError(t *testing.T) {
	source, mock := newMockSource(t)

	mock.ExpectQuery("SELECT @@character_set_database").WillReturnError(errors.New("connection refused"))

	_, err := source.CreateDatabaseCommand(context.Background())
	if err == nil || !strings.Contains(err.Error(), "character set") {
		t.Errorf("Expected character set error, got %v", err)
	}
}

func TestCommands(t *testing.T) {
	source := NewSource(readConn, writeConn)
	readFlags := "--port=3306 --host=127.0.0.1 --user=test_username --password='test_password'"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name: "schema",
			got:  source.SchemaCommand("test_table"),
			expected: "mysqldump " + readFlags + " --add-drop-table --create-options --set-charset " +
				"--compress --skip-triggers --no-data test_database 'test_table' | " +
				"mysql " + writeFlags + " test_write_database",
		},
		{
			name: "data",
			got:  source.DataCommand("test_table"),
			expected: "mysqldump " + readFlags + " --add-locks --single-transaction --extended-insert " +
				"--disable-keys --quick --no-create-info --compress --set-gtid-purged=OFF test_database " +
				"'test_table' | mysql " + writeFlags + " test_write_database",
		},
		{
			name: "chunked data",
			got:  source.ChunkedDataCommand("test_table", 1000, 3000),
			expected: "mysqldump " + readFlags + " --single-transaction --extended-insert --disable-keys " +
				"--quick --no-create-info --compress --set-gtid-purged=OFF --where='1 limit 1000 offset 3000' test_database " +
				"'test_table' | mysql " + writeFlags + " test_write_database",
		},
		{
			name: "triggers",
			got:  source.TriggersCommand("test_table"),
			expected: "mysqldump " + readFlags + " --compress --no-data --no-create-info --triggers " +
				"test_database 'test_table' | sed 's/\\sDEFINER=`[^`]*`@`[^`]*`//g' | " +
				"mysql " + writeFlags + " test_write_database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected:\n%s\ngot:\n%s", tt.expected, tt.got)
			}
		})
	}
}

func TestPasswordlessConnFlags(t *testing.T) {
	conn := config.Connection{Host: "localhost", Port: 3306, User: "root"}

	expected := "--port=3306 --host=localhost --user=root --password=''"
	if got := connFlags(conn); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		conn     config.Connection
		expected string
	}{
		{
			name:     "with password",
			conn:     config.Connection{Host: "localhost", Port: 3306, User: "root", Password: "secret", Database: "testdb"},
			expected: "root:secret@tcp(localhost:3306)/testdb",
		},
		{
			name:     "passwordless",
			conn:     config.Connection{Host: "localhost", Port: 3306, User: "root", Database: "testdb"},
			expected: "root@tcp(localhost:3306)/testdb",
		},
		{
			name:     "default port",
			conn:     config.Connection{Host: "db", User: "app", Database: "shop"},
			expected: "app@tcp(db:3306)/shop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dsn(tt.conn); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier("weird`name"); got != "`weird``name`" {
		t.Errorf("Unexpected quoting: %s", got)
	}
}

func TestCloseDoesNotCloseInjectedDB(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	source := NewSourceWithDB(db, readConn, writeConn)
	if err := source.Close(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Errorf("Injected DB should stay open: %v", err)
	}
}
