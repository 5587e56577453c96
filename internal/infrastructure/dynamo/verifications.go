package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/linkfolio-api/internal/domain"
)

// VerificationRepo manages hashed one-time codes awaiting confirmation.
// PK: user_id, SK: channel ("email" | "phone"). Put is an upsert on that
// composite key, so issuing a fresh code replaces the previous one for the
// same channel in a single write — there is no delete-then-insert window.
type VerificationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVerificationRepo(client *dynamodb.Client, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.VerificationChallenge) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// FindLive returns every unexpired challenge for the user. Expiry is checked
// at read time; the table's TTL sweep is an optimization, not what guarantees
// that an expired code never validates.
func (r *VerificationRepo) FindLive(ctx context.Context, userID string) ([]domain.VerificationChallenge, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("expires_at > :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		return nil, err
	}
	var challenges []domain.VerificationChallenge
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *VerificationRepo) Delete(ctx context.Context, userID, channel string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("user_id", userID, "channel", channel),
	})
	return err
}

// DeleteAll removes every challenge for the user, across channels. Called
// once verification succeeds so no stale code can be replayed.
func (r *VerificationRepo) DeleteAll(ctx context.Context, userID string) error {
	for _, channel := range []string{domain.ChannelEmail, domain.ChannelPhone} {
		if err := r.Delete(ctx, userID, channel); err != nil {
			return err
		}
	}
	return nil
}
