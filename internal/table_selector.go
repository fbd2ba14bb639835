package internal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

var ErrSelectionCancelled = errors.New("selection cancelled by user")

// TableSelector lets the user pick the tables of a copy run interactively.
type TableSelector struct {
	tables []string
	counts map[string]int64
	in     io.Reader
	out    io.Writer
}

func NewTableSelector(tables []string, counts map[string]int64) *TableSelector {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	return &TableSelector{
		tables: sorted,
		counts: counts,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// SelectTables presents a checkbox prompt and falls back to numbered input
// when the terminal cannot drive the prompt.
func (ts *TableSelector) SelectTables() ([]string, error) {
	if len(ts.tables) == 0 {
		return nil, fmt.Errorf("no tables available for selection")
	}

	Logger.Debug("Presenting tables for selection", "count", len(ts.tables))

	var selected []string
	prompt := &survey.MultiSelect{
		Message: "Select tables to copy:",
		Options: ts.tables,
		Description: func(value string, index int) string {
			if n, ok := ts.counts[value]; ok {
				return fmt.Sprintf("%d rows", n)
			}
			return ""
		},
		PageSize: 15,
	}

	err := survey.AskOne(prompt, &selected, survey.WithPageSize(15))
	if errors.Is(err, terminal.InterruptErr) {
		return nil, ErrSelectionCancelled
	}
	if err != nil {
		Logger.Debug("Interactive prompt unavailable, using numbered selection", "error", err)
		return ts.SelectTablesSimple()
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no tables selected")
	}

	var confirm bool
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Copy %d selected table(s)?", len(selected)),
		Default: true,
	}
	if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
		return nil, fmt.Errorf("confirmation error: %w", err)
	}
	if !confirm {
		return nil, ErrSelectionCancelled
	}

	return selected, nil
}

// SelectTablesSimple reads comma separated table numbers, or "all".
func (ts *TableSelector) SelectTablesSimple() ([]string, error) {
	if len(ts.tables) == 0 {
		return nil, fmt.Errorf("no tables available for selection")
	}

	fmt.Fprintln(ts.out, "\n📋 Available Tables:")
	for i, table := range ts.tables {
		fmt.Fprintf(ts.out, "  %d. %s\n", i+1, table)
	}
	fmt.Fprint(ts.out, "Enter table numbers (comma-separated, e.g., 1,3,5) or 'all' for all tables: ")

	line, err := bufio.NewReader(ts.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}

	input := strings.TrimSpace(line)
	if strings.EqualFold(input, "all") {
		return ts.tables, nil
	}

	var selected []string
	seen := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		num, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || num < 1 || num > len(ts.tables) || seen[num] {
			continue
		}
		seen[num] = true
		selected = append(selected, ts.tables[num-1])
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no tables selected")
	}

	return selected, nil
}
