package copier

import (
	"context"
	"fmt"

	"dbcopy/internal"
	"dbcopy/processor"
)

// IncludeTables restricts the copy to the given tables. It cannot be combined
// with ExcludeTables.
func (c *Copier) IncludeTables(tables ...string) error {
	if len(c.excludeTables) > 0 {
		return newConfigurationError("can not include tables when exclude tables is not empty")
	}
	c.includeTables = tables
	return nil
}

func (c *Copier) ExcludeTables(tables ...string) error {
	if len(c.includeTables) > 0 {
		return newConfigurationError("can not exclude tables when include tables is not empty")
	}
	c.excludeTables = tables
	return nil
}

// IncludeDataFor restricts the data phase to the given tables; every other
// table is copied schema only.
func (c *Copier) IncludeDataFor(tables ...string) error {
	if len(c.excludeDataFor) > 0 {
		return newConfigurationError("can not include table data when exclude table data is not empty")
	}
	c.includeDataFor = tables
	return nil
}

func (c *Copier) ExcludeDataFor(tables ...string) error {
	if len(c.includeDataFor) > 0 {
		return newConfigurationError("can not exclude table data when include table data is not empty")
	}
	c.excludeDataFor = tables
	return nil
}

// SetAllTables seeds the resolved table set, bypassing the source lookup.
// An empty seed still fails AllTables with a ConfigurationError.
func (c *Copier) SetAllTables(tables []string) {
	c.allTables = tables
	c.tablesResolved = true
}

func (c *Copier) SetAllTablesWithData(tables []string) {
	c.allTablesWithData = tables
	c.dataTablesResolved = true
}

// AllTables resolves the tables to copy. The result is computed once per
// Copier; later filter changes do not affect it.
func (c *Copier) AllTables(ctx context.Context) ([]string, error) {
	if c.tablesResolved {
		if len(c.allTables) == 0 {
			return nil, newConfigurationError("table list is empty")
		}
		return c.allTables, nil
	}

	available, err := c.source.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []string
	switch {
	case len(c.includeTables) > 0:
		if missing, ok := firstMissing(c.includeTables, available); ok {
			return nil, newConfigurationError(fmt.Sprintf("included table '%s' does not exist", missing))
		}
		tables = append(tables, c.includeTables...)
	case len(c.excludeTables) > 0:
		if missing, ok := firstMissing(c.excludeTables, available); ok {
			return nil, newConfigurationError(fmt.Sprintf("excluded table '%s' does not exist", missing))
		}
		tables = without(available, c.excludeTables)
	default:
		tables = available
	}

	if len(tables) == 0 {
		return nil, newConfigurationError("table list is empty")
	}

	internal.Logger.Debug("Resolved tables", "count", len(tables), "tables", tables)

	c.allTables = tables
	c.tablesResolved = true
	return tables, nil
}

// AllTablesWithData resolves the subset of AllTables whose rows are copied.
// An empty result is valid and means a schema only copy.
func (c *Copier) AllTablesWithData(ctx context.Context) ([]string, error) {
	if c.dataTablesResolved {
		return c.allTablesWithData, nil
	}

	tables, err := c.AllTables(ctx)
	if err != nil {
		return nil, err
	}

	var withData []string
	switch {
	case len(c.includeDataFor) > 0:
		if missing, ok := firstMissing(c.includeDataFor, tables); ok {
			return nil, newConfigurationError(fmt.Sprintf("table '%s' was defined to include data but does not exist in table array", missing))
		}
		withData = append(withData, c.includeDataFor...)
	case len(c.excludeDataFor) > 0:
		if missing, ok := firstMissing(c.excludeDataFor, tables); ok {
			return nil, newConfigurationError(fmt.Sprintf("table '%s' was defined to exclude data but does not exist in table array", missing))
		}
		withData = without(tables, c.excludeDataFor)
	default:
		withData = append(withData, tables...)
	}

	c.allTablesWithData = withData
	c.dataTablesResolved = true
	return withData, nil
}

// dataJobs expands every data table into its copy jobs. Tables above the row
// limit are split into ceil(rows/limit) chunks; the last chunk is not clamped.
func (c *Copier) dataJobs(ctx context.Context) ([]processor.Job, error) {
	tables, err := c.AllTablesWithData(ctx)
	if err != nil {
		return nil, err
	}

	var jobs []processor.Job
	for _, table := range tables {
		rows, err := c.source.RowCount(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}

		if c.rowLimit <= 0 || rows <= c.rowLimit {
			jobs = append(jobs, processor.Job{
				Command: c.source.DataCommand(table),
				Table:   table,
				Phase:   processor.PhaseData,
			})
			continue
		}

		chunks := 0
		for offset := int64(0); offset < rows; offset += c.rowLimit {
			jobs = append(jobs, processor.Job{
				Command: c.source.ChunkedDataCommand(table, c.rowLimit, offset),
				Table:   table,
				Phase:   processor.PhaseData,
			})
			chunks++
		}
		internal.Logger.Debug("Chunked table data", "table", table, "rows", rows, "chunks", chunks)
	}

	return jobs, nil
}

func (c *Copier) schemaJobs(ctx context.Context) ([]processor.Job, error) {
	tables, err := c.AllTables(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]processor.Job, 0, len(tables))
	for _, table := range tables {
		jobs = append(jobs, processor.Job{
			Command: c.source.SchemaCommand(table),
			Table:   table,
			Phase:   processor.PhaseSchema,
		})
	}
	return jobs, nil
}

func (c *Copier) triggerJobs(ctx context.Context) ([]processor.Job, error) {
	tables, err := c.AllTables(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]processor.Job, 0, len(tables))
	for _, table := range tables {
		jobs = append(jobs, processor.Job{
			Command: c.source.TriggersCommand(table),
			Table:   table,
			Phase:   processor.PhaseTriggers,
		})
	}
	return jobs, nil
}

func firstMissing(wanted, available []string) (string, bool) {
	set := make(map[string]struct{}, len(available))
	for _, t := range available {
		set[t] = struct{}{}
	}
	for _, t := range wanted {
		if _, ok := set[t]; !ok {
			return t, true
		}
	}
	return "", false
}

func without(tables, excluded []string) []string {
	skip := make(map[string]struct{}, len(excluded))
	for _, t := range excluded {
		skip[t] = struct{}{}
	}
	var out []string
	for _, t := range tables {
		if _, ok := skip[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
