// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package dynamodb persists the location history as a single DynamoDB item per history key.
//
// DynamoDB limits an item to 400 KB, which caps the history at a few thousand entries. Saves of
// larger histories fail with ErrItemTooLarge before anything is sent.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wneessen/geotrail/internal/history"
	"github.com/wneessen/geotrail/internal/vartype"
)

const (
	name         = "dynamodb"
	partitionKey = "history_key"

	// MaxItemSize is the DynamoDB item size limit in bytes.
	MaxItemSize = 400 * 1024
)

var (
	ErrNoClient = errors.New("DynamoDB client is required")
	ErrNoTable  = errors.New("DynamoDB table name is required")
	ErrNoKey    = errors.New("DynamoDB history key is required")

	ErrItemTooLarge = errors.New("history exceeds the DynamoDB item size limit")
)

// API is the subset of the DynamoDB client used by the Store.
type API interface {
	GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error)
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
}

// item is the stored representation of a History.
type item struct {
	HistoryKey string           `dynamodbav:"history_key"`
	Locations  []history.Sample `dynamodbav:"locations"`
	UpdatedAt  int64            `dynamodbav:"updated_at"`
}

type Store struct {
	client API
	table  string
	key    string
	now    func() time.Time
}

// New returns a Store that keeps the history under key in table.
func New(client API, table, key string) (*Store, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if table == "" {
		return nil, ErrNoTable
	}
	if key == "" {
		return nil, ErrNoKey
	}
	return &Store{
		client: client,
		table:  table,
		key:    key,
		now:    time.Now,
	}, nil
}

// NewClient creates a DynamoDB client from the default AWS credential chain. A non-empty endpoint
// overrides the service endpoint, e.g. for DynamoDB local.
func NewClient(ctx context.Context, region, endpoint string) (*ddb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ddb.NewFromConfig(cfg, func(o *ddb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *Store) Name() string {
	return name
}

// Load fetches the history item. A missing item is reported as an absent history.
func (s *Store) Load(ctx context.Context) (vartype.Variable[history.History], error) {
	result, err := s.client.GetItem(ctx, &ddb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.itemKey(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return vartype.None[history.History](), fmt.Errorf("failed to get history from DynamoDB: %w", err)
	}
	if result == nil || result.Item == nil {
		return vartype.None[history.History](), nil
	}

	var stored item
	if err = attributevalue.UnmarshalMap(result.Item, &stored); err != nil {
		return vartype.None[history.History](), fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return vartype.NewVariable(history.History{Locations: stored.Locations}), nil
}

// Save replaces the history item with hist.
func (s *Store) Save(ctx context.Context, hist history.History) error {
	locations := hist.Locations
	if locations == nil {
		locations = make([]history.Sample, 0)
	}
	av, err := attributevalue.MarshalMap(item{
		HistoryKey: s.key,
		Locations:  locations,
		UpdatedAt:  s.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if size := itemSize(av); size > MaxItemSize {
		return fmt.Errorf("%w: %d entries, about %d bytes", ErrItemTooLarge, len(locations), size)
	}

	if _, err = s.client.PutItem(ctx, &ddb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to save history to DynamoDB: %w", err)
	}
	return nil
}

func (s *Store) itemKey() map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		partitionKey: &ddbtypes.AttributeValueMemberS{Value: s.key},
	}
}

// itemSize estimates the stored size of an item the way DynamoDB counts it: attribute names plus
// values, with a few bytes of overhead per list and map. Numbers are counted by their string
// length, which is never below the stored size.
func itemSize(av map[string]ddbtypes.AttributeValue) int {
	size := 0
	for k, v := range av {
		size += len(k) + valueSize(v)
	}
	return size
}

func valueSize(av ddbtypes.AttributeValue) int {
	switch v := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		return len(v.Value)
	case *ddbtypes.AttributeValueMemberN:
		return len(v.Value)
	case *ddbtypes.AttributeValueMemberB:
		return len(v.Value)
	case *ddbtypes.AttributeValueMemberBOOL, *ddbtypes.AttributeValueMemberNULL:
		return 1
	case *ddbtypes.AttributeValueMemberL:
		size := 3
		for _, e := range v.Value {
			size += 1 + valueSize(e)
		}
		return size
	case *ddbtypes.AttributeValueMemberM:
		return 3 + itemSize(v.Value)
	case *ddbtypes.AttributeValueMemberSS:
		size := 0
		for _, e := range v.Value {
			size += len(e)
		}
		return size
	case *ddbtypes.AttributeValueMemberNS:
		size := 0
		for _, e := range v.Value {
			size += len(e)
		}
		return size
	default:
		return 0
	}
}
