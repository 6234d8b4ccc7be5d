package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/volfs/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // key -> item
	err   error
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	slices.SortFunc(items, func(a, b map[string]types.AttributeValue) int {
		return int(version(b)) - int(version(a))
	})

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestDDBCommitStore(ddb *mockDDBClient, baseURI string) (*DDBCommitStore, *blobstore.MemoryStore) {
	data := blobstore.NewMemoryStore()
	return NewDDBCommitStore(data, ddb, "volfs-commits", baseURI), data
}

func readCurrent(t *testing.T, store blobstore.BlobStore) string {
	t.Helper()
	b, err := blobstore.ReadAll(context.Background(), store, CurrentName)
	require.NoError(t, err)
	return string(b)
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, CurrentName, []byte("SNAPSHOT-000001.bin")))

	blob, err := store.Open(ctx, CurrentName)
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 100)
	n, err := blob.ReadAt(ctx, buf, 0)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "SNAPSHOT-000001.bin", string(buf[:n]))
	assert.Equal(t, int64(n), blob.Size())
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, []byte(fmt.Sprintf("SNAPSHOT-%06d.bin", i))))
	}
	assert.Equal(t, "SNAPSHOT-000012.bin", readCurrent(t, store))
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, CurrentName, []byte("SNAPSHOT-000001.bin")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := store.Put(ctx, CurrentName, []byte(fmt.Sprintf("SNAPSHOT-%06d.bin", id+2)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConcurrentModification):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Greater(t, successes, 0, "at least one writer should succeed")
}

func TestDDBCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()

	store1, _ := newTestDDBCommitStore(ddb, "s3://bucket-a/path/")
	store2, _ := newTestDDBCommitStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, CurrentName, []byte("SNAPSHOT-A.bin")))
	require.NoError(t, store2.Put(ctx, CurrentName, []byte("SNAPSHOT-B.bin")))

	assert.Equal(t, "SNAPSHOT-A.bin", readCurrent(t, store1))
	assert.Equal(t, "SNAPSHOT-B.bin", readCurrent(t, store2))
}

func TestDDBCommitStore_DataBlobs(t *testing.T) {
	ctx := context.Background()
	store, data := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, "SNAPSHOT-000001.bin", []byte("payload")))
	assert.Equal(t, 1, data.Len())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"SNAPSHOT-000001.bin"}, names)

	require.NoError(t, store.Put(ctx, CurrentName, []byte("SNAPSHOT-000001.bin")))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{CurrentName, "SNAPSHOT-000001.bin"}, names)

	names, err = store.List(ctx, "SNAPSHOT-")
	require.NoError(t, err)
	assert.Equal(t, []string{"SNAPSHOT-000001.bin"}, names)

	require.Error(t, store.Delete(ctx, CurrentName))
	require.NoError(t, store.Delete(ctx, "SNAPSHOT-000001.bin"))
	assert.Equal(t, 0, data.Len())
}

func TestDDBCommitStore_QueryError(t *testing.T) {
	ddb := newMockDDBClient()
	ddb.err = errors.New("throttled")
	store, _ := newTestDDBCommitStore(ddb, "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), CurrentName)
	require.ErrorContains(t, err, "throttled")
	require.Error(t, store.Put(context.Background(), CurrentName, []byte("x")))
}

func TestCurrentBlob_ReadRange(t *testing.T) {
	b := &currentBlob{content: "SNAPSHOT-000007.bin"}

	rc, err := b.ReadRange(context.Background(), 9, 6)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "000007", string(got))

	rc, err = b.ReadRange(context.Background(), 100, 5)
	require.NoError(t, err)
	got, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, got)
}
