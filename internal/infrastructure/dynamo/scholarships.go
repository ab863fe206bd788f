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

// ScholarshipRepo provides typed DynamoDB operations for the scholarships table.
type ScholarshipRepo struct {
	client    DB
	tableName string
	feed      Publisher
}

func NewScholarshipRepo(client DB, tableName string, feed Publisher) *ScholarshipRepo {
	return &ScholarshipRepo{client: client, tableName: tableName, feed: feed}
}

func (r *ScholarshipRepo) Put(ctx context.Context, s *domain.Scholarship) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal scholarship: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + fieldScholarshipID + ")"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return fmt.Errorf("scholarship %s already exists: %w", s.ScholarshipID, domain.ErrConflict)
		}
		return storeErr("put scholarship", err)
	}
	publish(r.feed, changefeed.Scholarships, changefeed.OpInsert, s.ScholarshipID)
	return nil
}

func (r *ScholarshipRepo) Get(ctx context.Context, scholarshipID string) (*domain.Scholarship, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldScholarshipID, scholarshipID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeErr("get scholarship", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("scholarship %s: %w", scholarshipID, domain.ErrNotFound)
	}
	var s domain.Scholarship
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, fmt.Errorf("unmarshal scholarship: %w", err)
	}
	return &s, nil
}

// List returns every application in table order.
func (r *ScholarshipRepo) List(ctx context.Context) ([]domain.Scholarship, error) {
	out := []domain.Scholarship{}
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:      aws.String(r.tableName),
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr("scan scholarships", err)
		}
		var batch []domain.Scholarship
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal scholarships: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

// LatestByEmail returns the applicant's most recent application.
func (r *ScholarshipRepo) LatestByEmail(ctx context.Context, email string) (*domain.Scholarship, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String(indexScholarshipsByEmail),
		KeyConditionExpression:   aws.String("#e = :e"),
		ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, storeErr("query scholarships by email", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("no application for %s: %w", email, domain.ErrNotFound)
	}
	var s domain.Scholarship
	if err := attributevalue.UnmarshalMap(out.Items[0], &s); err != nil {
		return nil, fmt.Errorf("unmarshal scholarship: %w", err)
	}
	return &s, nil
}

// Verify writes the verification fields. The update only applies to an existing,
// unrevoked application; otherwise ErrNotFound or ErrRevoked is returned and nothing changes.
func (r *ScholarshipRepo) Verify(ctx context.Context, scholarshipID string, v domain.VerifyUpdate) (*domain.Scholarship, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldScholarshipType:    v.ScholarshipType,
		fieldGPARequirement:     v.GPARequirement,
		fieldBenefactor:         v.Benefactor,
		fieldAcademicYear:       v.AcademicYear,
		fieldContractExpiration: v.ContractExpiration,
		fieldDateVerified:       v.VerifiedAt,
		fieldVerifiedBy:         v.VerifiedBy,
		fieldUpdatedAt:          v.VerifiedAt,
	})
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldScholarshipID
	ue.Names["#rev"] = fieldIsRevoked
	ue.Values[":notRevoked"] = &types.AttributeValueMemberBOOL{Value: false}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 strKey(fieldScholarshipID, scholarshipID),
		UpdateExpression:                    aws.String(ue.Expr),
		ConditionExpression:                 aws.String("attribute_exists(#pk) AND #rev = :notRevoked"),
		ExpressionAttributeNames:            ue.Names,
		ExpressionAttributeValues:           ue.Values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if ccf, ok := conditionFailed(err); ok {
			if len(ccf.Item) == 0 {
				return nil, fmt.Errorf("scholarship %s: %w", scholarshipID, domain.ErrNotFound)
			}
			return nil, fmt.Errorf("scholarship %s: %w", scholarshipID, domain.ErrRevoked)
		}
		return nil, storeErr("verify scholarship", err)
	}
	var s domain.Scholarship
	if err := attributevalue.UnmarshalMap(out.Attributes, &s); err != nil {
		return nil, fmt.Errorf("unmarshal scholarship: %w", err)
	}
	publish(r.feed, changefeed.Scholarships, changefeed.OpUpdate, scholarshipID)
	return &s, nil
}

// Revoke sets is_revoked. The first revoker is kept. It returns the item as it was
// before the update so callers can tell whether this call made the transition.
func (r *ScholarshipRepo) Revoke(ctx context.Context, scholarshipID, revokedBy string, at time.Time) (*domain.Scholarship, error) {
	now, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, fmt.Errorf("marshal revoke time: %w", err)
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldScholarshipID, scholarshipID),
		UpdateExpression:    aws.String("SET #rev = :true, #by = if_not_exists(#by, :by), #upd = :now"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  fieldScholarshipID,
			"#rev": fieldIsRevoked,
			"#by":  fieldRevokedBy,
			"#upd": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
			":by":   &types.AttributeValueMemberS{Value: revokedBy},
			":now":  now,
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return nil, fmt.Errorf("scholarship %s: %w", scholarshipID, domain.ErrNotFound)
		}
		return nil, storeErr("revoke scholarship", err)
	}
	var prev domain.Scholarship
	if err := attributevalue.UnmarshalMap(out.Attributes, &prev); err != nil {
		return nil, fmt.Errorf("unmarshal scholarship: %w", err)
	}
	publish(r.feed, changefeed.Scholarships, changefeed.OpUpdate, scholarshipID)
	return &prev, nil
}
