package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/infrastructure/changefeed"
)

// AccountRepo provides typed DynamoDB operations for the accounts table. PK: email.
type AccountRepo struct {
	client    DB
	tableName string
	feed      Publisher
}

func NewAccountRepo(client DB, tableName string, feed Publisher) *AccountRepo {
	return &AccountRepo{client: client, tableName: tableName, feed: feed}
}

// Create inserts a new account and fails with ErrConflict if the email is taken.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + fieldEmail + ")"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return fmt.Errorf("account %s: %w", a.Email, domain.ErrConflict)
		}
		return storeErr("put account", err)
	}
	publish(r.feed, changefeed.Accounts, changefeed.OpInsert, a.Email)
	return nil
}

func (r *AccountRepo) Get(ctx context.Context, email string) (*domain.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldEmail, email),
	})
	if err != nil {
		return nil, storeErr("get account", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &a, nil
}

// Update applies a partial SET to an existing account and returns the result.
func (r *AccountRepo) Update(ctx context.Context, email string, updates map[string]interface{}) (*domain.Account, error) {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldEmail
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldEmail, email),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
		}
		return nil, storeErr("update account", err)
	}
	var a domain.Account
	if err := attributevalue.UnmarshalMap(out.Attributes, &a); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	publish(r.feed, changefeed.Accounts, changefeed.OpUpdate, email)
	return &a, nil
}
