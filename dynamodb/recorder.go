package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"dbcopy/internal"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	tableWaitTimeout = 5 * time.Minute
)

type Config struct {
	Region    string `json:"region"`
	TableName string `json:"tableName"`
	Endpoint  string `json:"endpoint,omitempty"` // Optional for local DynamoDB
}

// API is the subset of the DynamoDB client used by the Recorder.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// RunRecord is one copy run as stored in the history table.
type RunRecord struct {
	RunID       string
	Source      string
	Destination string
	Status      string
	Error       string
	Tables      []string
	DataTables  []string
	PhaseJobs   map[string]int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Recorder writes one item per copy run to a DynamoDB table.
type Recorder struct {
	Config Config
	client API
}

func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("history table name is required")
	}

	client, err := createClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
	}

	return &Recorder{Config: cfg, client: client}, nil
}

func NewRecorderWithClient(cfg Config, client API) *Recorder {
	return &Recorder{Config: cfg, client: client}
}

func createClient(cfg Config) (*dynamodb.Client, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	// Use custom endpoint if provided (for local DynamoDB)
	if cfg.Endpoint != "" {
		return dynamodb.NewFromConfig(awsConfig, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}), nil
	}

	return dynamodb.NewFromConfig(awsConfig), nil
}

func NewRunID() string {
	return uuid.NewString()
}

// EnsureTable creates the history table when it does not exist yet and waits
// for it to become active.
func (r *Recorder) EnsureTable(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.Config.TableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe history table: %w", err)
	}

	internal.Logger.Debug("Creating history table", "table", r.Config.TableName)

	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.Config.TableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("run_id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("run_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create history table: %w", err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(r.client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.Config.TableName),
	}, tableWaitTimeout)
}

func (r *Recorder) Record(ctx context.Context, run RunRecord) error {
	if run.RunID == "" {
		run.RunID = NewRunID()
	}

	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.Config.TableName),
		Item:      runItem(run),
	})
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}

	internal.Logger.Debug("Recorded run", "runId", run.RunID, "status", run.Status, "table", r.Config.TableName)
	return nil
}

func runItem(run RunRecord) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"run_id":      &types.AttributeValueMemberS{Value: run.RunID},
		"source":      &types.AttributeValueMemberS{Value: run.Source},
		"destination": &types.AttributeValueMemberS{Value: run.Destination},
		"status":      &types.AttributeValueMemberS{Value: run.Status},
		"started_at":  &types.AttributeValueMemberS{Value: run.StartedAt.UTC().Format(time.RFC3339)},
		"finished_at": &types.AttributeValueMemberS{Value: run.FinishedAt.UTC().Format(time.RFC3339)},
		"duration_ms": &types.AttributeValueMemberN{Value: strconv.FormatInt(run.FinishedAt.Sub(run.StartedAt).Milliseconds(), 10)},
	}

	if run.Error != "" {
		item["error"] = &types.AttributeValueMemberS{Value: run.Error}
	}

	// String sets may not be empty.
	if len(run.Tables) > 0 {
		item["tables"] = &types.AttributeValueMemberSS{Value: run.Tables}
	}
	if len(run.DataTables) > 0 {
		item["data_tables"] = &types.AttributeValueMemberSS{Value: run.DataTables}
	}

	if len(run.PhaseJobs) > 0 {
		jobs := make(map[string]types.AttributeValue, len(run.PhaseJobs))
		for phase, count := range run.PhaseJobs {
			jobs[phase] = &types.AttributeValueMemberN{Value: strconv.Itoa(count)}
		}
		item["phase_jobs"] = &types.AttributeValueMemberM{Value: jobs}
	}

	return item
}
