package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeAPI struct {
	tableExists bool
	describeErr error
	createErr   error
	putErr      error

	createCalls []*dynamodb.CreateTableInput
	puts        []*dynamodb.PutItemInput
}

func (f *fakeAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, params)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.createCalls = append(f.createCalls, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.tableExists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if !f.tableExists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   params.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func TestNewRecorderRequiresTableName(t *testing.T) {
	_, err := NewRecorder(Config{Region: "us-east-1"})
	if err == nil {
		t.Fatal("Expected error for missing table name")
	}
	if !strings.Contains(err.Error(), "table name is required") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCreateClient(t *testing.T) {
	cfg := Config{
		Region:   "us-east-1",
		Endpoint: "http://localhost:8000",
	}

	client, err := createClient(cfg)
	if err != nil {
		// Expected in test environment
		t.Logf("Expected error creating client without AWS config: %v", err)
		return
	}

	if client == nil {
		t.Error("Expected non-nil client")
	}
}

func TestEnsureTable(t *testing.T) {
	tests := []struct {
		name          string
		api           *fakeAPI
		expectCreates int
		expectErr     bool
	}{
		{
			name:          "existing table",
			api:           &fakeAPI{tableExists: true},
			expectCreates: 0,
		},
		{
			name:          "missing table is created",
			api:           &fakeAPI{},
			expectCreates: 1,
		},
		{
			name:      "describe failure",
			api:       &fakeAPI{describeErr: errors.New("throttled")},
			expectErr: true,
		},
		{
			name:          "create failure",
			api:           &fakeAPI{createErr: errors.New("limit exceeded")},
			expectCreates: 1,
			expectErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := NewRecorderWithClient(Config{TableName: "runs"}, tt.api)

			err := recorder.EnsureTable(context.Background())
			if tt.expectErr && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			if len(tt.api.createCalls) != tt.expectCreates {
				t.Errorf("Expected %d CreateTable calls, got %d", tt.expectCreates, len(tt.api.createCalls))
			}
		})
	}
}

func TestEnsureTableSchema(t *testing.T) {
	api := &fakeAPI{}
	recorder := NewRecorderWithClient(Config{TableName: "runs"}, api)

	if err := recorder.EnsureTable(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	input := api.createCalls[0]
	if aws.ToString(input.TableName) != "runs" {
		t.Errorf("Expected table runs, got %s", aws.ToString(input.TableName))
	}
	if input.BillingMode != types.BillingModePayPerRequest {
		t.Errorf("Expected on-demand billing, got %s", input.BillingMode)
	}
	if len(input.KeySchema) != 1 || aws.ToString(input.KeySchema[0].AttributeName) != "run_id" || input.KeySchema[0].KeyType != types.KeyTypeHash {
		t.Errorf("Unexpected key schema %+v", input.KeySchema)
	}
}

func TestRecord(t *testing.T) {
	api := &fakeAPI{tableExists: true}
	recorder := NewRecorderWithClient(Config{TableName: "runs"}, api)

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run := RunRecord{
		RunID:       "run-1",
		Source:      "acme/prod",
		Destination: "acme/local",
		Status:      StatusSucceeded,
		Tables:      []string{"users", "orders"},
		DataTables:  []string{"users"},
		PhaseJobs:   map[string]int{"schema": 3, "data": 4},
		StartedAt:   started,
		FinishedAt:  started.Add(90 * time.Second),
	}

	if err := recorder.Record(context.Background(), run); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(api.puts) != 1 {
		t.Fatalf("Expected one PutItem, got %d", len(api.puts))
	}
	put := api.puts[0]
	if aws.ToString(put.TableName) != "runs" {
		t.Errorf("Expected table runs, got %s", aws.ToString(put.TableName))
	}

	expectedStrings := map[string]string{
		"run_id":      "run-1",
		"source":      "acme/prod",
		"destination": "acme/local",
		"status":      StatusSucceeded,
		"started_at":  "2024-03-01T10:00:00Z",
		"finished_at": "2024-03-01T10:01:30Z",
	}
	for key, expected := range expectedStrings {
		attr, ok := put.Item[key].(*types.AttributeValueMemberS)
		if !ok {
			t.Errorf("Expected string attribute %s", key)
			continue
		}
		if attr.Value != expected {
			t.Errorf("Expected %s=%s, got %s", key, expected, attr.Value)
		}
	}

	duration, ok := put.Item["duration_ms"].(*types.AttributeValueMemberN)
	if !ok || duration.Value != "90000" {
		t.Errorf("Unexpected duration attribute %+v", put.Item["duration_ms"])
	}

	tables, ok := put.Item["tables"].(*types.AttributeValueMemberSS)
	if !ok {
		t.Fatal("Expected tables string set")
	}
	got := append([]string(nil), tables.Value...)
	sort.Strings(got)
	if strings.Join(got, ",") != "orders,users" {
		t.Errorf("Unexpected tables %v", got)
	}

	jobs, ok := put.Item["phase_jobs"].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("Expected phase_jobs map")
	}
	if n, ok := jobs.Value["data"].(*types.AttributeValueMemberN); !ok || n.Value != "4" {
		t.Errorf("Unexpected data job count %+v", jobs.Value["data"])
	}

	if _, ok := put.Item["error"]; ok {
		t.Error("Successful runs should not carry an error attribute")
	}
}

func TestRecordFailedRun(t *testing.T) {
	api := &fakeAPI{tableExists: true}
	recorder := NewRecorderWithClient(Config{TableName: "runs"}, api)

	err := recorder.Record(context.Background(), RunRecord{
		Status: StatusFailed,
		Error:  "data phase failed",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	item := api.puts[0].Item
	if id, ok := item["run_id"].(*types.AttributeValueMemberS); !ok || id.Value == "" {
		t.Error("Expected a generated run id")
	}
	if msg, ok := item["error"].(*types.AttributeValueMemberS); !ok || msg.Value != "data phase failed" {
		t.Errorf("Unexpected error attribute %+v", item["error"])
	}
	if _, ok := item["tables"]; ok {
		t.Error("Empty table lists must not be written as string sets")
	}
}

func TestRecordPutError(t *testing.T) {
	api := &fakeAPI{putErr: errors.New("access denied")}
	recorder := NewRecorderWithClient(Config{TableName: "runs"}, api)

	err := recorder.Record(context.Background(), RunRecord{RunID: "run-2"})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if !strings.Contains(err.Error(), "run-2") || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == "" || a == b {
		t.Errorf("Expected unique run ids, got %q and %q", a, b)
	}
}
