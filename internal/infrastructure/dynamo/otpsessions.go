package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/linkfolio-api/internal/domain"
)

// OTPSessionRepo tracks verify attempts per pre-auth session, keyed by user.
// The counter is incremented with an atomic ADD and read back in the same
// call, so concurrent submissions cannot under-count and a client can never
// supply its own attempt state.
type OTPSessionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPSessionRepo(client *dynamodb.Client, tableName string) *OTPSessionRepo {
	return &OTPSessionRepo{client: client, tableName: tableName}
}

// Reset starts a fresh attempt counter for the user, replacing any previous
// session. Called whenever a new pre-auth token is issued.
func (r *OTPSessionRepo) Reset(ctx context.Context, userID string, expiresAt int64) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"user_id":    &types.AttributeValueMemberS{Value: userID},
			"attempts":   &types.AttributeValueMemberN{Value: "0"},
			"expires_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt)},
		},
	})
	return err
}

// Increment bumps the attempt counter and returns the post-increment value.
// The session item must already exist: without the condition, ADD on a
// consumed or TTL-swept session would recreate it with no expiry.
func (r *OTPSessionRepo) Increment(ctx context.Context, userID string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("user_id", userID),
		ConditionExpression: aws.String("attribute_exists(user_id)"),
		UpdateExpression:    aws.String("ADD attempts :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, fmt.Errorf("otp session expired or invalid: %w", domain.ErrUnauthorized)
		}
		return 0, err
	}
	n, ok := out.Attributes["attempts"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attempts attribute missing from update result")
	}
	var attempts int
	if _, err := fmt.Sscanf(n.Value, "%d", &attempts); err != nil {
		return 0, fmt.Errorf("parse attempts: %w", err)
	}
	return attempts, nil
}

// Delete removes the session record, ending attempt tracking for the user.
func (r *OTPSessionRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	return err
}
