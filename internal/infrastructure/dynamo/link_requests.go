package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
)

// LinkRequestRepo manages account-link working records.
// PK: initiator_citizen_id — the key schema itself enforces "at most one
// request per initiator"; writing a new request supersedes the old row.
type LinkRequestRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewLinkRequestRepo(client *dynamodb.Client, tableName string) *LinkRequestRepo {
	return &LinkRequestRepo{client: client, tableName: tableName}
}

func (r *LinkRequestRepo) Put(ctx context.Context, lr *domain.LinkRequest) error {
	item, err := attributevalue.MarshalMap(lr)
	if err != nil {
		return fmt.Errorf("marshal link request: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *LinkRequestRepo) Get(ctx context.Context, initiatorID string) (*domain.LinkRequest, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("initiator_citizen_id", initiatorID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("link request not found: %w", domain.ErrNotFound)
	}
	var lr domain.LinkRequest
	if err := attributevalue.UnmarshalMap(out.Item, &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

// SetStatus transitions the request's lifecycle state.
func (r *LinkRequestRepo) SetStatus(ctx context.Context, initiatorID string, status domain.LinkRequestStatus) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    string(status),
		fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("initiator_citizen_id", initiatorID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// Delete removes the initiator's request row. Used when rolling back an
// initiate whose verification email could not be delivered.
func (r *LinkRequestRepo) Delete(ctx context.Context, initiatorID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("initiator_citizen_id", initiatorID),
	})
	return err
}
