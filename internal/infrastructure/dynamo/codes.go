package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
)

// CodeRepo manages verification-code rows.
// PK: subject_key, SK: purpose — one row per (purpose, subject), so the
// active code for a subject is always the single stored row and issuing
// a replacement invalidates the old value by overwriting it.
type CodeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCodeRepo(client *dynamodb.Client, tableName string) *CodeRepo {
	return &CodeRepo{client: client, tableName: tableName}
}

func (r *CodeRepo) Put(ctx context.Context, c *domain.VerificationCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *CodeRepo) Get(ctx context.Context, purpose domain.CodePurpose, subjectKey string) (*domain.VerificationCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey("subject_key", subjectKey, "purpose", string(purpose)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	var c domain.VerificationCode
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Consume flips the consumed flag with a conditional update. The condition
// requires the row to still carry codeID unconsumed, so under concurrent
// duplicate redemptions exactly one caller succeeds; everyone else — and
// anyone holding a code that was superseded between their read and this
// write — gets ErrUnauthorized.
func (r *CodeRepo) Consume(ctx context.Context, purpose domain.CodePurpose, subjectKey, codeID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("subject_key", subjectKey, "purpose", string(purpose)),
		UpdateExpression:    aws.String("SET consumed = :t"),
		ConditionExpression: aws.String("attribute_exists(subject_key) AND code_id = :id AND consumed = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":  &types.AttributeValueMemberBOOL{Value: true},
			":f":  &types.AttributeValueMemberBOOL{Value: false},
			":id": &types.AttributeValueMemberS{Value: codeID},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("code already consumed or superseded: %w", domain.ErrUnauthorized)
		}
		return err
	}
	return nil
}

// Delete removes the active code for a subject. Used as a compensating
// rollback when delivery fails and when a superseded link request's code
// must stop being redeemable.
func (r *CodeRepo) Delete(ctx context.Context, purpose domain.CodePurpose, subjectKey string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("subject_key", subjectKey, "purpose", string(purpose)),
	})
	return err
}

// DeleteIssued removes the code only if it still carries codeID, so a
// rollback cannot clobber a newer code issued in the meantime.
func (r *CodeRepo) DeleteIssued(ctx context.Context, purpose domain.CodePurpose, subjectKey, codeID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("subject_key", subjectKey, "purpose", string(purpose)),
		ConditionExpression: aws.String("code_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: codeID},
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
