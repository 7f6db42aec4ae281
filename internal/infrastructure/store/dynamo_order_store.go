package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/vexokart/internal/domain/order"
)

const (
	dynamoTokenIndex = "TokenDigestIndex"
	dynamoListIndex  = "GSI1"
	dynamoListPK     = "ORDERS"
)

// DynamoAPI is the subset of the DynamoDB client the order store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoOrderStore stores one item per order. Writes are conditional on
// the version read, so concurrent writers retry instead of clobbering.
type DynamoOrderStore struct {
	client    DynamoAPI
	tableName string
}

// dynamoOrder represents the DynamoDB item structure
type dynamoOrder struct {
	ID            string `dynamodbav:"id"`
	Version       int    `dynamodbav:"version"`
	UserEmail     string `dynamodbav:"user_email"`
	Status        string `dynamodbav:"status"`
	QRTokenDigest string `dynamodbav:"qr_token_digest,omitempty"` // sparse GSI key
	Data          string `dynamodbav:"data"`
	CreatedAt     string `dynamodbav:"created_at"`
	GSI1PK        string `dynamodbav:"gsi1pk"`
}

func NewDynamoOrderStore(client DynamoAPI, tableName string) *DynamoOrderStore {
	return &DynamoOrderStore{client: client, tableName: tableName}
}

func (s *DynamoOrderStore) Create(ctx context.Context, o *order.Order) error {
	o.Version = 1
	av, err := s.marshal(o)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if isConditionFailed(err) {
		return ErrDuplicateOrder
	}
	if err != nil {
		return fmt.Errorf("failed to put order: %w", err)
	}
	return nil
}

func (s *DynamoOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if result.Item == nil {
		return nil, order.ErrOrderNotFound
	}
	return s.unmarshal(result.Item)
}

func (s *DynamoOrderStore) GetByTokenDigest(ctx context.Context, digest string) (*order.Order, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(dynamoTokenIndex),
		KeyConditionExpression: aws.String("qr_token_digest = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: digest},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query token index: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, order.ErrOrderNotFound
	}
	// The index may project keys only and is eventually consistent, so
	// re-read the base item.
	var key struct {
		ID string `dynamodbav:"id"`
	}
	if err := attributevalue.UnmarshalMap(result.Items[0], &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index item: %w", err)
	}
	o, err := s.Get(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	if o.QRTokenDigest != digest {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (s *DynamoOrderStore) Update(ctx context.Context, id string, fn func(o *order.Order) (bool, error)) (*order.Order, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		readVersion := o.Version
		changed, err := fn(o)
		if err != nil {
			return nil, err
		}
		if !changed {
			return o, nil
		}

		o.Version = readVersion + 1
		av, err := s.marshal(o)
		if err != nil {
			return nil, err
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.tableName),
			Item:                av,
			ConditionExpression: aws.String("version = :v"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberN{Value: strconv.Itoa(readVersion)},
			},
		})
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to put order: %w", err)
		}
		return o, nil
	}
	return nil, ErrConflict
}

// List returns all orders via GSI1, oldest first.
func (s *DynamoOrderStore) List(ctx context.Context) ([]*order.Order, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(dynamoListIndex),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: dynamoListPK},
		},
		ScanIndexForward: aws.Bool(true),
	}

	orders := make([]*order.Order, 0)
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list orders: %w", err)
		}
		for _, item := range result.Items {
			o, err := s.unmarshal(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return orders, nil
}

func (s *DynamoOrderStore) marshal(o *order.Order) (map[string]types.AttributeValue, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	item := dynamoOrder{
		ID:            o.ID,
		Version:       o.Version,
		UserEmail:     o.UserEmail,
		Status:        string(o.Status),
		QRTokenDigest: o.QRTokenDigest,
		Data:          string(data),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339Nano),
		GSI1PK:        dynamoListPK,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}
	return av, nil
}

func (s *DynamoOrderStore) unmarshal(item map[string]types.AttributeValue) (*order.Order, error) {
	var do dynamoOrder
	if err := attributevalue.UnmarshalMap(item, &do); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	var o order.Order
	if err := json.Unmarshal([]byte(do.Data), &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	o.Version = do.Version
	return &o, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
