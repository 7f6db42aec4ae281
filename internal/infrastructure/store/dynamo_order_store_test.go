package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo understands the handful of expressions DynamoOrderStore sends.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	pageSize  int
	beforePut func(id string)
	puts      int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func attrS(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func attrN(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return ""
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[attrS(in.Key, "id")]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := attrS(in.Item, "id")
	if f.beforePut != nil {
		f.beforePut(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	current, exists := f.items[id]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_not_exists(id)":
		if exists {
			return nil, conditionFailed()
		}
	case "version = :v":
		if !exists || attrN(current, "version") != attrN(in.ExpressionAttributeValues, ":v") {
			return nil, conditionFailed()
		}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		switch aws.ToString(in.IndexName) {
		case dynamoTokenIndex:
			d := attrS(in.ExpressionAttributeValues, ":d")
			if d != "" && attrS(item, "qr_token_digest") == d {
				matched = append(matched, item)
			}
		case dynamoListIndex:
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return attrS(matched[i], "created_at") < attrS(matched[j], "created_at")
	})

	start := 0
	if in.ExclusiveStartKey != nil {
		after := attrS(in.ExclusiveStartKey, "id")
		for i, item := range matched {
			if attrS(item, "id") == after {
				start = i + 1
				break
			}
		}
	}
	matched = matched[start:]

	out := &dynamodb.QueryOutput{}
	if f.pageSize > 0 && len(matched) > f.pageSize {
		matched = matched[:f.pageSize]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: attrS(matched[len(matched)-1], "id")},
		}
	}
	out.Items = matched
	return out, nil
}

func TestDynamoOrderStore_CreateAndGet(t *testing.T) {
	s := NewDynamoOrderStore(newFakeDynamo(), "orders")
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, newStoredOrder("o-1", created)))

	got, err := s.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, order.StatusPlaced, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	assert.ErrorIs(t, s.Create(ctx, newStoredOrder("o-1", created)), ErrDuplicateOrder)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestDynamoOrderStore_UpdateBumpsVersion(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoOrderStore(fake, "orders")
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newStoredOrder("o-1", time.Now())))

	got, err := s.Update(ctx, "o-1", func(o *order.Order) (bool, error) {
		o.Status = order.StatusConfirmed
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "2", attrN(fake.items["o-1"], "version"))
	assert.Equal(t, string(order.StatusConfirmed), attrS(fake.items["o-1"], "status"))

	puts := fake.puts
	_, err = s.Update(ctx, "o-1", func(*order.Order) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, puts, fake.puts, "unchanged order must not be written")
}

func TestDynamoOrderStore_UpdateRetriesOnConflict(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoOrderStore(fake, "orders")
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newStoredOrder("o-1", time.Now())))

	// Another writer sneaks in once between our read and our write.
	interfered := false
	fake.beforePut = func(id string) {
		if interfered {
			return
		}
		interfered = true
		fake.mu.Lock()
		fake.items[id]["version"] = &types.AttributeValueMemberN{Value: strconv.Itoa(7)}
		fake.mu.Unlock()
	}

	calls := 0
	got, err := s.Update(ctx, "o-1", func(o *order.Order) (bool, error) {
		calls++
		o.PaymentID = "pay-1"
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 8, got.Version)
}

func TestDynamoOrderStore_UpdateGivesUpAfterRetries(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoOrderStore(fake, "orders")
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newStoredOrder("o-1", time.Now())))

	bump := 100
	fake.beforePut = func(id string) {
		fake.mu.Lock()
		bump++
		fake.items[id]["version"] = &types.AttributeValueMemberN{Value: strconv.Itoa(bump)}
		fake.mu.Unlock()
	}

	_, err := s.Update(ctx, "o-1", func(o *order.Order) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDynamoOrderStore_GetByTokenDigest(t *testing.T) {
	s := NewDynamoOrderStore(newFakeDynamo(), "orders")
	ctx := context.Background()

	o := newStoredOrder("o-1", time.Now())
	o.QRTokenDigest = "digest-a"
	require.NoError(t, s.Create(ctx, o))
	require.NoError(t, s.Create(ctx, newStoredOrder("o-2", time.Now())))

	got, err := s.GetByTokenDigest(ctx, "digest-a")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.ID)

	_, err = s.GetByTokenDigest(ctx, "digest-b")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	// Re-minting moves the index entry.
	_, err = s.Update(ctx, "o-1", func(o *order.Order) (bool, error) {
		o.QRTokenDigest = "digest-b"
		return true, nil
	})
	require.NoError(t, err)
	_, err = s.GetByTokenDigest(ctx, "digest-a")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestDynamoOrderStore_ListFollowsPages(t *testing.T) {
	fake := newFakeDynamo()
	fake.pageSize = 2
	s := NewDynamoOrderStore(fake, "orders")
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"o-1", "o-2", "o-3", "o-4", "o-5"} {
		require.NoError(t, s.Create(ctx, newStoredOrder(id, base.Add(time.Duration(i)*time.Minute))))
	}

	orders, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 5)
	for i, o := range orders {
		assert.Equal(t, "o-"+strconv.Itoa(i+1), o.ID)
	}
}
