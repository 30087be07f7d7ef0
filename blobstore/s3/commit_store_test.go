package s3

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/sfatrie/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB is an in-memory table with conditional puts.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func attrS(item map[string]types.AttributeValue, name string) string {
	return item[name].(*types.AttributeValueMemberS).Value
}

func attrN(item map[string]types.AttributeValue, name string) uint64 {
	v, _ := strconv.ParseUint(item[name].(*types.AttributeValueMemberN).Value, 10, 64)
	return v
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%s:%d", attrS(in.Item, "base_uri"), attrN(in.Item, "version"))
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(version)" {
		if _, ok := f.items[key]; ok {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uri := in.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range f.items {
		if attrS(item, "base_uri") == uri {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b map[string]types.AttributeValue) int {
		return int(attrN(b, "version")) - int(attrN(a, "version"))
	})
	if in.Limit != nil && int(*in.Limit) < len(items) {
		items = items[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestCommitStore_Versions(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewMemoryStore()
	store := NewCommitStore(inner, newFakeDDB(), "commits", "s3://bucket/idx")

	_, err := store.Open(ctx, blobstore.CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Put(ctx, blobstore.CurrentName, fmt.Appendf(nil, "index-%03d.sfa", i)))
	}
	version, target, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, "index-003.sfa", target)

	got, err := blobstore.ReadAll(ctx, store, blobstore.CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "index-003.sfa", string(got))

	names, err := inner.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names, "CURRENT never reaches the inner store")

	require.NoError(t, store.Put(ctx, "index-003.sfa", []byte("data")))
	got, err = blobstore.ReadAll(ctx, store, "index-003.sfa")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestCommitStore_Conflict(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	store := NewCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket/idx")
	require.NoError(t, store.Put(ctx, blobstore.CurrentName, []byte("a")))

	// a second writer that already read version 1 loses the race
	assert.ErrorIs(t, store.commit(ctx, 1, "b"), ErrConcurrentModification)

	_, target, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", target)
}

func TestCommitStore_Namespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newFakeDDB()
	a := NewCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket/a")
	b := NewCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket/b")

	require.NoError(t, a.Put(ctx, blobstore.CurrentName, []byte("a1")))
	require.NoError(t, a.Put(ctx, blobstore.CurrentName, []byte("a2")))
	require.NoError(t, b.Put(ctx, blobstore.CurrentName, []byte("b1")))

	va, ta, err := a.Latest(ctx)
	require.NoError(t, err)
	vb, tb, err := b.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), va)
	assert.Equal(t, "a2", ta)
	assert.Equal(t, uint64(1), vb)
	assert.Equal(t, "b1", tb)
}
