package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestDynamoStoreImplementsStore(_ *testing.T) {
	var _ Store = (*DynamoStore)(nil)
}

// fakeDynamo is an in-memory DynamoAPI for exercising the store's attribute
// handling and cursor logic without a DynamoDB endpoint.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(key map[string]types.AttributeValue) string {
	s, _ := key[dynamoAttrKey].(*types.AttributeValueMemberS)
	if s == nil {
		return ""
	}
	return s.Value
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := ""
	if p, ok := params.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS); ok {
		prefix = p.Value
	}
	start := ""
	if params.ExclusiveStartKey != nil {
		start = itemKey(params.ExclusiveStartKey)
	}
	limit := len(f.items)
	if params.Limit != nil {
		limit = int(*params.Limit)
	}

	// The fake scans in sorted order so pagination is deterministic.
	names := make([]string, 0, len(f.items))
	for k := range f.items {
		if strings.HasPrefix(k, prefix) && k > start {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	out := &dynamodb.ScanOutput{}
	for i, name := range names {
		if i >= limit {
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				dynamoAttrKey: &types.AttributeValueMemberS{Value: names[i-1]},
			}
			break
		}
		out.Items = append(out.Items, f.items[name])
	}
	return out, nil
}

func TestDynamoStoreContract(t *testing.T) {
	runStoreContract(t, NewDynamoStoreWithClient(newFakeDynamo(), "relink-test"))
}

func TestDynamoStoreReadTimeExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewDynamoStoreWithClient(newFakeDynamo(), "relink-test")
	base := time.Now()
	store.now = func() time.Time { return base }

	if err := store.Put(ctx, "url-tmp", []byte("x"), 60); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Get(ctx, "url-tmp"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	// DynamoDB TTL reaping lags; the store must still treat the item as gone.
	store.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, err := store.Get(ctx, "url-tmp"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
