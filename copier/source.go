package copier

import (
	"context"

	"dbcopy/processor"
)

// CommandSource turns table names into engine specific shell commands and
// answers the two read queries the planner needs. The copier never inspects
// the commands it is handed.
type CommandSource interface {
	ListTables(ctx context.Context) ([]string, error)
	RowCount(ctx context.Context, table string) (int64, error)

	CreateDatabaseCommand(ctx context.Context) (string, error)
	SchemaCommand(table string) string
	DataCommand(table string) string
	ChunkedDataCommand(table string, limit, offset int64) string
	TriggersCommand(table string) string
}

// Runner executes submitted jobs in batches. *processor.Processor implements it.
type Runner interface {
	Submit(job processor.Job)
	Run(ctx context.Context) ([]processor.Result, error)
}
