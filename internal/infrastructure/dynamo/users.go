package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/linkfolio-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
//
// Uniqueness of username/email/phone is enforced with guard items that share
// the table: each guard's partition key is "uniq#<field>#<value>" and is
// written in the same TransactWriteItems as the user item with an
// attribute_not_exists condition. A race that slips past the service-level
// pre-check therefore still fails atomically, and the cancellation reason
// tells us which field collided.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func guardID(field, value string) string {
	return fmt.Sprintf("uniq#%s#%s", field, value)
}

// guardFields returns the unique fields present on u, in a stable order that
// matches the transact items built by Create and Delete.
func guardFields(u *domain.User) [][2]string {
	fields := [][2]string{{"username", u.Username}}
	if u.Email != nil && *u.Email != "" {
		fields = append(fields, [2]string{"email", *u.Email})
	}
	if u.Phone != nil && *u.Phone != "" {
		fields = append(fields, [2]string{"phone", *u.Phone})
	}
	return fields
}

// Create inserts the user and its uniqueness guards in one transaction.
// Returns domain.ErrConflict wrapped with the name of the colliding field.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(user_id)"),
		},
	}}
	fields := guardFields(u)
	for _, f := range fields {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item: map[string]types.AttributeValue{
					"user_id":  &types.AttributeValueMemberS{Value: guardID(f[0], f[1])},
					"owner_id": &types.AttributeValueMemberS{Value: u.UserID},
				},
				ConditionExpression: aws.String("attribute_not_exists(user_id)"),
			},
		})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for i, reason := range tce.CancellationReasons {
				if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
					continue
				}
				if i == 0 {
					// The user item itself collided, which only happens on an id reuse.
					return fmt.Errorf("user already exists: %w", domain.ErrConflict)
				}
				return fmt.Errorf("%s already registered: %w", fields[i-1][0], domain.ErrConflict)
			}
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, "username-index", "username", username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.queryGSI(ctx, "phone-index", "phone", phone)
}

// GetByLoginIdentifier looks a user up by email or phone equality, in that
// order. Which lookup missed is not reported, so callers can keep login
// errors indistinguishable.
func (r *UserRepo) GetByLoginIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	u, err := r.GetByEmail(ctx, identifier)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return r.GetByPhone(ctx, identifier)
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// AppendTrustedDevice adds a remembered-device entry in a single UpdateItem,
// so concurrent verifications cannot drop each other's entries.
func (r *UserRepo) AppendTrustedDevice(ctx context.Context, userID string, d domain.TrustedDevice) error {
	av, err := attributevalue.Marshal([]domain.TrustedDevice{d})
	if err != nil {
		return fmt.Errorf("marshal trusted device: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("user_id", userID),
		UpdateExpression: aws.String("SET trusted_devices = list_append(if_not_exists(trusted_devices, :empty), :d), updated_at = :ts"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":     av,
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":ts":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_exists(user_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
	}
	return err
}

// Delete hard-deletes the user item together with its uniqueness guards, so
// the handle and contact methods become claimable again.
func (r *UserRepo) Delete(ctx context.Context, u *domain.User) error {
	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName: aws.String(r.tableName),
			Key:       strKey("user_id", u.UserID),
		},
	}}
	for _, f := range guardFields(u) {
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       strKey("user_id", guardID(f[0], f[1])),
			},
		})
	}
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return err
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}
