package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
)

// ThirdPartyAppRepo manages authorized third-party application records.
type ThirdPartyAppRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewThirdPartyAppRepo(client *dynamodb.Client, tableName string) *ThirdPartyAppRepo {
	return &ThirdPartyAppRepo{client: client, tableName: tableName}
}

func (r *ThirdPartyAppRepo) Put(ctx context.Context, a *domain.ThirdPartyApp) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal third-party app: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// GetByAPIKey looks up an enabled app by its API key via the api_key-index GSI.
func (r *ThirdPartyAppRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.ThirdPartyApp, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("api_key-index"),
		KeyConditionExpression: aws.String("api_key = :k"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: apiKey},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("third-party app not found: %w", domain.ErrNotFound)
	}
	var a domain.ThirdPartyApp
	if err := attributevalue.UnmarshalMap(out.Items[0], &a); err != nil {
		return nil, err
	}
	if !a.Enable {
		return nil, fmt.Errorf("third-party app disabled: %w", domain.ErrUnauthorized)
	}
	return &a, nil
}
