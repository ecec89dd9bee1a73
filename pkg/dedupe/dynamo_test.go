package dedupe

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakePutItem struct {
	err  error
	last *dynamodb.PutItemInput
}

func (f *fakePutItem) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoStore_MarkWritesConditionalItem(t *testing.T) {
	fake := &fakePutItem{}
	s := NewDynamoStore(fake, "dedupe-table", "message_id", "expire_at")
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	exp := now.Add(time.Hour)
	inserted, err := s.Mark(context.Background(), "delivery-1", exp)
	if err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	if !inserted {
		t.Error("expected insert to succeed")
	}

	in := fake.last
	if aws.ToString(in.TableName) != "dedupe-table" {
		t.Errorf("unexpected table: %s", aws.ToString(in.TableName))
	}
	key, ok := in.Item["message_id"].(*types.AttributeValueMemberS)
	if !ok || key.Value != "delivery-1" {
		t.Errorf("unexpected key attribute: %#v", in.Item["message_id"])
	}
	ttl, ok := in.Item["expire_at"].(*types.AttributeValueMemberN)
	if !ok || ttl.Value != strconv.FormatInt(exp.Unix(), 10) {
		t.Errorf("unexpected ttl attribute: %#v", in.Item["expire_at"])
	}
	if aws.ToString(in.ConditionExpression) != "attribute_not_exists(#k) OR #t < :now" {
		t.Errorf("unexpected condition: %s", aws.ToString(in.ConditionExpression))
	}
	nowAttr, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN)
	if !ok || nowAttr.Value != strconv.FormatInt(now.Unix(), 10) {
		t.Errorf("unexpected :now value: %#v", in.ExpressionAttributeValues[":now"])
	}
}

// A failed condition means the key is already marked, not an error.
func TestDynamoStore_ConditionFailureMeansDuplicate(t *testing.T) {
	fake := &fakePutItem{err: &types.ConditionalCheckFailedException{}}
	s := NewDynamoStore(fake, "t", "k", "e")

	inserted, err := s.Mark(context.Background(), "delivery-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if inserted {
		t.Error("expected duplicate to report false")
	}
}

func TestDynamoStore_OtherErrorsPropagate(t *testing.T) {
	boom := errors.New("throttled")
	fake := &fakePutItem{err: boom}
	s := NewDynamoStore(fake, "t", "k", "e")

	_, err := s.Mark(context.Background(), "delivery-1", time.Now().Add(time.Hour))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
