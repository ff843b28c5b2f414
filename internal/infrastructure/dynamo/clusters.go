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

// ClusterRepo owns the citizen→cluster membership mapping.
// PK: citizen_id (a citizen is in at most one cluster); the
// cluster_id-index GSI answers "who shares this cluster".
type ClusterRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewClusterRepo(client *dynamodb.Client, tableName string) *ClusterRepo {
	return &ClusterRepo{client: client, tableName: tableName}
}

func (r *ClusterRepo) GetMember(ctx context.Context, citizenID string) (*domain.ClusterMember, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("citizen_id", citizenID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("citizen %s is not in any cluster: %w", citizenID, domain.ErrNotFound)
	}
	var m domain.ClusterMember
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ClusterRepo) ListByCluster(ctx context.Context, clusterID string) ([]domain.ClusterMember, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("cluster_id-index"),
		KeyConditionExpression: aws.String("cluster_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: clusterID},
		},
	})
	if err != nil {
		return nil, err
	}
	var members []domain.ClusterMember
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// Commit applies a membership change as one TransactWriteItems call:
// every upsert and removal lands atomically or not at all, so a merge or
// leave can never be observed half-applied. DynamoDB caps a transaction
// at 100 items, which bounds cluster size well above practical use.
func (r *ClusterRepo) Commit(ctx context.Context, upserts []domain.ClusterMember, removals []string) error {
	if len(upserts)+len(removals) == 0 {
		return nil
	}
	items := make([]types.TransactWriteItem, 0, len(upserts)+len(removals))
	for i := range upserts {
		item, err := attributevalue.MarshalMap(&upserts[i])
		if err != nil {
			return fmt.Errorf("marshal cluster member: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(r.tableName), Item: item},
		})
	}
	for _, citizenID := range removals {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{TableName: aws.String(r.tableName), Key: strKey("citizen_id", citizenID)},
		})
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("cluster transaction canceled: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}
