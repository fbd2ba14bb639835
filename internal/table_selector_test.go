package internal

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func newTestSelector(tables []string, input string) *TableSelector {
	ts := NewTableSelector(tables, nil)
	ts.in = strings.NewReader(input)
	ts.out = &bytes.Buffer{}
	return ts
}

func TestSelectTablesSimple(t *testing.T) {
	tables := []string{"users", "orders", "audit_log"}

	tests := []struct {
		name        string
		input       string
		expected    []string
		expectError bool
	}{
		{
			name:     "all tables",
			input:    "all\n",
			expected: []string{"audit_log", "orders", "users"},
		},
		{
			name:     "numbered selection uses sorted order",
			input:    "1,3\n",
			expected: []string{"audit_log", "users"},
		},
		{
			name:     "duplicates and invalid entries are skipped",
			input:    "2, 2, x, 9\n",
			expected: []string{"orders"},
		},
		{
			name:     "input without trailing newline",
			input:    "3",
			expected: []string{"users"},
		},
		{
			name:        "nothing selected",
			input:       "\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := newTestSelector(tables, tt.input).SelectTablesSimple()

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(selected, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, selected)
			}
		})
	}
}

func TestSelectTablesEmpty(t *testing.T) {
	ts := newTestSelector(nil, "all\n")

	if _, err := ts.SelectTables(); err == nil {
		t.Error("Expected error when no tables are available")
	}
	if _, err := ts.SelectTablesSimple(); err == nil {
		t.Error("Expected error when no tables are available")
	}
}
