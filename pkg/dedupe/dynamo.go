package dedupe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PutItemAPI is the slice of the DynamoDB client the store needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps delivery markers in a DynamoDB table with a numeric TTL
// attribute. The conditional expression makes the insert-if-absent atomic;
// an expired-but-unpurged item counts as absent because DynamoDB TTL sweeps
// lazily.
type DynamoStore struct {
	client   PutItemAPI
	table    string
	keyField string
	ttlField string
	now      func() time.Time
}

func NewDynamoStore(client PutItemAPI, table, keyField, ttlField string) *DynamoStore {
	return &DynamoStore{
		client:   client,
		table:    table,
		keyField: keyField,
		ttlField: ttlField,
		now:      time.Now,
	}
}

func (s *DynamoStore) Mark(ctx context.Context, key string, expireAt time.Time) (bool, error) {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			s.keyField: &types.AttributeValueMemberS{Value: key},
			s.ttlField: &types.AttributeValueMemberN{Value: strconv.FormatInt(expireAt.Unix(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(#k) OR #t < :now"),
		ExpressionAttributeNames: map[string]string{
			"#k": s.keyField,
			"#t": s.ttlField,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("dedupe mark %s: %w", key, err)
	}
	return true, nil
}
