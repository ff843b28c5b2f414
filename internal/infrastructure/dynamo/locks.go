package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
)

// LockRepo stores lock leases. PK: lock_key; a row means "held".
// Acquisition is a conditional PutItem — the row must be absent or its
// lease expired — so contention resolves inside DynamoDB, not in the
// application. expires_at also acts as the table's TTL attribute, which
// garbage-collects leases abandoned by crashed holders.
type LockRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewLockRepo(client *dynamodb.Client, tableName string) *LockRepo {
	return &LockRepo{client: client, tableName: tableName}
}

// TryAcquire attempts to take the lease once. Returns ErrConflict when
// another holder owns an unexpired lease.
func (r *LockRepo) TryAcquire(ctx context.Context, key, owner string, lease time.Duration) error {
	now := time.Now().Unix()
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"lock_key":   &types.AttributeValueMemberS{Value: key},
			"owner":      &types.AttributeValueMemberS{Value: owner},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(now+int64(lease.Seconds()), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(lock_key) OR expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("lock %s is held: %w", key, domain.ErrConflict)
		}
		return err
	}
	return nil
}

// Release drops the lease, but only if we still own it — a lease that
// expired and was re-acquired by someone else must not be deleted.
func (r *LockRepo) Release(ctx context.Context, key, owner string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("lock_key", key),
		ConditionExpression: aws.String("#o = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#o": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
	}
	return err
}
