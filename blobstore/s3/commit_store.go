package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/sfatrie/blobstore"
)

// ErrConcurrentModification is returned when another writer committed the
// same version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification")

// DDBClient is the subset of *dynamodb.Client CommitStore uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ blobstore.BlobStore = (*CommitStore)(nil)

// CommitStore keeps snapshots in an inner store and the CURRENT pointer in
// a DynamoDB table, so that concurrent publishers cannot overwrite each
// other. Every Put of CURRENT appends version n+1 with a conditional write.
//
// Table schema: partition key base_uri (S), sort key version (N).
//
//	aws dynamodb create-table \
//	  --table-name sfatrie-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	blobstore.BlobStore
	ddb     DDBClient
	table   string
	baseURI string
}

// NewCommitStore wraps inner. baseURI, typically "s3://bucket/prefix",
// namespaces the commits of one index in a shared table.
func NewCommitStore(inner blobstore.BlobStore, ddb DDBClient, table, baseURI string) *CommitStore {
	return &CommitStore{BlobStore: inner, ddb: ddb, table: table, baseURI: baseURI}
}

// Open resolves CURRENT from DynamoDB and everything else from the inner store.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != blobstore.CurrentName {
		return s.BlobStore.Open(ctx, name)
	}
	version, target, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, blobstore.ErrNotFound
	}
	return pointerBlob(target), nil
}

// Put commits a new version when name is CURRENT.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != blobstore.CurrentName {
		return s.BlobStore.Put(ctx, name, data)
	}
	version, _, err := s.Latest(ctx)
	if err != nil {
		return err
	}
	return s.commit(ctx, version+1, string(data))
}

// Latest returns the newest committed version and its target, or 0 when
// nothing was committed under the base URI.
func (s *CommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commits: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: commit without version")
	}
	targetAttr, ok := item["target"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: commit without target")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("s3: commit version: %w", err)
	}
	return version, targetAttr.Value, nil
}

func (s *CommitStore) commit(ctx context.Context, version uint64, target string) error {
	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version, 10)},
			"target":   &types.AttributeValueMemberS{Value: target},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit version %d: %w", version, err)
	}
	return nil
}

// pointerBlob is the in-memory content of CURRENT.
type pointerBlob []byte

func (b pointerBlob) Close() error { return nil }

func (b pointerBlob) Size() int64 { return int64(len(b)) }

func (b pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return bytes.NewReader(b).ReadAt(p, off)
}

func (b pointerBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(b)))
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

// Bytes implements blobstore.Mappable.
func (b pointerBlob) Bytes() ([]byte, error) { return b, nil }
