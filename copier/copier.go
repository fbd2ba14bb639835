package copier

import (
	"context"
	"fmt"
	"time"

	"dbcopy/internal"
	"dbcopy/processor"
)

// Copier copies a database in three phases: schema, data, then triggers.
// Each phase is fully drained by the Runner before the next one is planned.
type Copier struct {
	runner Runner
	source CommandSource

	rowLimit     int64
	copyTriggers bool
	onPhase      func(phase processor.Phase, jobs int)

	includeTables  []string
	excludeTables  []string
	includeDataFor []string
	excludeDataFor []string

	allTables          []string
	tablesResolved     bool
	allTablesWithData  []string
	dataTablesResolved bool
}

func New(runner Runner, source CommandSource) *Copier {
	return &Copier{
		runner:       runner,
		source:       source,
		copyTriggers: true,
	}
}

// SetRowLimit enables chunked data copies for tables with more rows than
// limit. Zero disables chunking.
func (c *Copier) SetRowLimit(limit int64) *Copier {
	if limit < 0 {
		limit = 0
	}
	c.rowLimit = limit
	return c
}

func (c *Copier) SetCopyTriggers(copyTriggers bool) *Copier {
	c.copyTriggers = copyTriggers
	return c
}

// OnPhase registers a callback invoked with the job count of each phase
// before it starts.
func (c *Copier) OnPhase(fn func(phase processor.Phase, jobs int)) *Copier {
	c.onPhase = fn
	return c
}

type PhaseReport struct {
	Phase    processor.Phase
	Jobs     int
	Duration time.Duration
	Skipped  bool
}

// Report summarises a CopyAll call. On failure it holds the phases that completed.
type Report struct {
	Tables     []string
	DataTables []string
	Phases     []PhaseReport
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) Jobs() int {
	total := 0
	for _, p := range r.Phases {
		total += p.Jobs
	}
	return total
}

// CopyAll runs the schema and data phases, then the triggers phase when
// enabled. Both table sets are resolved before anything runs. The first
// failing phase aborts the copy.
func (c *Copier) CopyAll(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	if _, err := c.AllTablesWithData(ctx); err != nil {
		return report, err
	}

	phase, err := c.CopySchema(ctx)
	report.Tables = c.allTables
	if err != nil {
		return report, err
	}
	report.Phases = append(report.Phases, phase)

	phase, err = c.CopyData(ctx)
	report.DataTables = c.allTablesWithData
	if err != nil {
		return report, err
	}
	report.Phases = append(report.Phases, phase)

	if !c.copyTriggers {
		internal.Logger.Debug("Skipping triggers phase")
		return report, nil
	}

	phase, err = c.CopyTriggers(ctx)
	if err != nil {
		return report, err
	}
	report.Phases = append(report.Phases, phase)

	return report, nil
}

// CopySchema creates the destination database on its own, then copies the
// structure of every resolved table.
func (c *Copier) CopySchema(ctx context.Context) (PhaseReport, error) {
	report := PhaseReport{Phase: processor.PhaseSchema}

	jobs, err := c.schemaJobs(ctx)
	if err != nil {
		return report, err
	}

	createCmd, err := c.source.CreateDatabaseCommand(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to build create database command: %w", err)
	}

	c.notifyPhase(processor.PhaseSchema, len(jobs)+1)
	start := time.Now()

	c.runner.Submit(processor.Job{Command: createCmd, Phase: processor.PhaseSchema})
	if _, err := c.runner.Run(ctx); err != nil {
		return report, fmt.Errorf("failed to create destination database: %w", err)
	}

	if err := c.run(ctx, processor.PhaseSchema, jobs); err != nil {
		return report, err
	}

	report.Jobs = len(jobs) + 1
	report.Duration = time.Since(start)
	return report, nil
}

// CopyData submits the data jobs of every data table and drains them in one
// run so chunks of different tables share the concurrency cap.
func (c *Copier) CopyData(ctx context.Context) (PhaseReport, error) {
	report := PhaseReport{Phase: processor.PhaseData}

	jobs, err := c.dataJobs(ctx)
	if err != nil {
		return report, err
	}

	if len(jobs) == 0 {
		internal.Logger.Info("No tables selected for data copy")
		report.Skipped = true
		return report, nil
	}

	c.notifyPhase(processor.PhaseData, len(jobs))
	start := time.Now()

	if err := c.run(ctx, processor.PhaseData, jobs); err != nil {
		return report, err
	}

	report.Jobs = len(jobs)
	report.Duration = time.Since(start)
	return report, nil
}

// CopyTriggers copies triggers after the bulk load so they do not fire on
// copied rows.
func (c *Copier) CopyTriggers(ctx context.Context) (PhaseReport, error) {
	report := PhaseReport{Phase: processor.PhaseTriggers}

	jobs, err := c.triggerJobs(ctx)
	if err != nil {
		return report, err
	}

	c.notifyPhase(processor.PhaseTriggers, len(jobs))
	start := time.Now()

	if err := c.run(ctx, processor.PhaseTriggers, jobs); err != nil {
		return report, err
	}

	report.Jobs = len(jobs)
	report.Duration = time.Since(start)
	return report, nil
}

func (c *Copier) run(ctx context.Context, phase processor.Phase, jobs []processor.Job) error {
	internal.Logger.Info("Phase started", "phase", phase, "jobs", len(jobs))

	for _, job := range jobs {
		c.runner.Submit(job)
	}

	start := time.Now()
	if _, err := c.runner.Run(ctx); err != nil {
		return fmt.Errorf("%s phase failed: %w", phase, err)
	}

	internal.Logger.Info("Phase completed", "phase", phase, "duration", time.Since(start))
	return nil
}

func (c *Copier) notifyPhase(phase processor.Phase, jobs int) {
	if c.onPhase != nil {
		c.onPhase(phase, jobs)
	}
}

// Plan resolves tables and row counts and returns, in execution order, every
// job CopyAll would run. Nothing is submitted to the Runner.
func (c *Copier) Plan(ctx context.Context) ([]processor.Job, error) {
	schema, err := c.schemaJobs(ctx)
	if err != nil {
		return nil, err
	}

	createCmd, err := c.source.CreateDatabaseCommand(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build create database command: %w", err)
	}

	jobs := []processor.Job{{Command: createCmd, Phase: processor.PhaseSchema}}
	jobs = append(jobs, schema...)

	data, err := c.dataJobs(ctx)
	if err != nil {
		return nil, err
	}
	jobs = append(jobs, data...)

	if c.copyTriggers {
		triggers, err := c.triggerJobs(ctx)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, triggers...)
	}

	return jobs, nil
}
