package kv

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoAttrKey    = "k"
	dynamoAttrValue  = "v"
	dynamoAttrExpiry = "exp"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore is a Store backed by a DynamoDB table with a single string
// partition key "k". Expiration uses the table's native TTL on the "exp"
// attribute; because DynamoDB TTL deletion lags, expiry is also enforced at
// read time so an expired item never reads as live.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// DynamoConfig configures NewDynamoStore.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string // optional, for DynamoDB Local
	// Optional static credentials; the default AWS credential chain is used
	// when AccessKey is empty.
	AccessKey string
	SecretKey string
}

// NewDynamoStore creates a DynamoDB-backed store. The table must already
// exist with partition key "k" (string) and TTL enabled on "exp".
func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoStoreWithClient(client, cfg.Table), nil
}

// NewDynamoStoreWithClient wraps an existing client. Used by tests.
func NewDynamoStoreWithClient(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, now: time.Now}
}

func (s *DynamoStore) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoAttrKey: &types.AttributeValueMemberS{Value: key},
	}
}

func itemExpiry(item map[string]types.AttributeValue) int64 {
	n, ok := item[dynamoAttrExpiry].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	exp, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0
	}
	return exp
}

// Get returns the bytes stored under key, or ErrNotFound. Items whose TTL
// has passed but which DynamoDB has not yet reaped read as absent.
func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.keyAttr(key),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %q: %w", key, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	if exp := itemExpiry(out.Item); exp != 0 && exp <= s.now().Unix() {
		return nil, ErrNotFound
	}
	b, ok := out.Item[dynamoAttrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("dynamodb get %q: item has no binary %q attribute", key, dynamoAttrValue)
	}
	return b.Value, nil
}

// Put writes value under key, with the TTL attribute set when ttlSeconds > 0.
func (s *DynamoStore) Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	item := map[string]types.AttributeValue{
		dynamoAttrKey:   &types.AttributeValueMemberS{Value: key},
		dynamoAttrValue: &types.AttributeValueMemberB{Value: value},
	}
	if ttlSeconds > 0 {
		exp := s.now().Unix() + ttlSeconds
		item[dynamoAttrExpiry] = &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)}
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. DynamoDB deletes are idempotent so an absent key is
// not an error.
func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.keyAttr(key),
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete %q: %w", key, err)
	}
	return nil
}

// List scans the table for keys with opts.Prefix. The cursor is the last key
// name of the previous page, fed back as the scan's ExclusiveStartKey. Scan
// order is not insertion order; it is only stable within one listing session.
func (s *DynamoStore) List(ctx context.Context, opts ListOptions) (ListPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		FilterExpression:     aws.String("begins_with(#k, :prefix)"),
		ProjectionExpression: aws.String("#k, #exp"),
		ExpressionAttributeNames: map[string]string{
			"#k":   dynamoAttrKey,
			"#exp": dynamoAttrExpiry,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: opts.Prefix},
		},
		Limit: aws.Int32(int32(limit)),
	}
	if opts.Cursor != "" {
		input.ExclusiveStartKey = s.keyAttr(opts.Cursor)
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return ListPage{}, fmt.Errorf("dynamodb list prefix %q: %w", opts.Prefix, err)
	}

	nowUnix := s.now().Unix()
	page := ListPage{Complete: out.LastEvaluatedKey == nil}
	for _, item := range out.Items {
		name, ok := item[dynamoAttrKey].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		exp := itemExpiry(item)
		if exp != 0 && exp <= nowUnix {
			continue
		}
		page.Keys = append(page.Keys, KeyInfo{Name: name.Value, Expiration: exp})
	}
	if !page.Complete {
		if last, ok := out.LastEvaluatedKey[dynamoAttrKey].(*types.AttributeValueMemberS); ok {
			page.Cursor = last.Value
		}
	}
	return page, nil
}
