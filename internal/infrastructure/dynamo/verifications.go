package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/scholarship-portal/internal/domain"
)

// VerificationRepo stores pending one-time sign-in links.
// PK: email, SK: type. Expired rows are reaped by the table TTL on expires_at.
type VerificationRepo struct {
	client    DB
	tableName string
}

func NewVerificationRepo(client DB, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

// Put replaces any pending verification of the same type for the email.
func (r *VerificationRepo) Put(ctx context.Context, v *domain.Verification) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return storeErr("put verification", err)
	}
	return nil
}

func (r *VerificationRepo) Get(ctx context.Context, email, verType string) (*domain.Verification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey(fieldEmail, email, fieldType, verType),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeErr("get verification", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	var v domain.Verification
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &v, nil
}

func (r *VerificationRepo) Delete(ctx context.Context, email, verType string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldEmail, email, fieldType, verType),
	})
	if err != nil {
		return storeErr("delete verification", err)
	}
	return nil
}
