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

// notificationRecord is the stored shape of a notification. The audience is kept as
// the flat recipients list; read/acted sets are string sets so ADD deduplicates.
type notificationRecord struct {
	NotificationID string     `dynamodbav:"notification_id"`
	Title          string     `dynamodbav:"title"`
	Message        string     `dynamodbav:"message"`
	Category       string     `dynamodbav:"category"`
	RequiresAction bool       `dynamodbav:"requires_action"`
	Deadline       *time.Time `dynamodbav:"deadline,omitempty"`
	Recipients     []string   `dynamodbav:"recipients"`
	DatePosted     time.Time  `dynamodbav:"date_posted"`
	PublishedBy    string     `dynamodbav:"published_by"`
	IsReadBy       []string   `dynamodbav:"is_read_by,stringset,omitempty"`
	IsActedBy      []string   `dynamodbav:"is_acted_by,stringset,omitempty"`
	Reference      *string    `dynamodbav:"reference,omitempty"`
}

func toNotificationRecord(n *domain.Notification) notificationRecord {
	return notificationRecord{
		NotificationID: n.NotificationID,
		Title:          n.Title,
		Message:        n.Message,
		Category:       string(n.Category),
		RequiresAction: n.RequiresAction,
		Deadline:       n.Deadline,
		Recipients:     n.Audience.Recipients(),
		DatePosted:     n.DatePosted,
		PublishedBy:    n.PublishedBy,
		IsReadBy:       nilIfEmpty(n.IsReadBy),
		IsActedBy:      nilIfEmpty(n.IsActedBy),
		Reference:      n.Reference,
	}
}

// DynamoDB rejects empty sets, so an empty set is stored as an absent attribute.
func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func (r notificationRecord) toDomain() domain.Notification {
	n := domain.Notification{
		NotificationID: r.NotificationID,
		Title:          r.Title,
		Message:        r.Message,
		Category:       domain.Category(r.Category),
		RequiresAction: r.RequiresAction,
		Deadline:       r.Deadline,
		Audience:       domain.AudienceFromRecipients(r.Recipients),
		DatePosted:     r.DatePosted,
		PublishedBy:    r.PublishedBy,
		IsReadBy:       r.IsReadBy,
		IsActedBy:      r.IsActedBy,
		Reference:      r.Reference,
	}
	if n.IsReadBy == nil {
		n.IsReadBy = []string{}
	}
	if n.IsActedBy == nil {
		n.IsActedBy = []string{}
	}
	return n
}

func unmarshalNotification(item map[string]types.AttributeValue) (*domain.Notification, error) {
	var rec notificationRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	n := rec.toDomain()
	return &n, nil
}

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    DB
	tableName string
	feed      Publisher
}

func NewNotificationRepo(client DB, tableName string, feed Publisher) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName, feed: feed}
}

// Put inserts a new notification. The id must not exist yet.
func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(toNotificationRecord(n))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + fieldNotificationID + ")"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return fmt.Errorf("notification %s already exists: %w", n.NotificationID, domain.ErrConflict)
		}
		return storeErr("put notification", err)
	}
	publish(r.feed, changefeed.Notifications, changefeed.OpInsert, n.NotificationID)
	return nil
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldNotificationID, notificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeErr("get notification", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	return unmarshalNotification(out.Item)
}

// ListForRecipient returns every notification addressed to everyone or to identity,
// in table order. Callers sort.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, identity string) ([]domain.Notification, error) {
	return r.scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("contains(#r, :everyone) OR contains(#r, :me)"),
		ExpressionAttributeNames: map[string]string{
			"#r": fieldRecipients,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":everyone": &types.AttributeValueMemberS{Value: domain.EveryoneRecipient},
			":me":       &types.AttributeValueMemberS{Value: identity},
		},
		ConsistentRead: aws.Bool(true),
	})
}

// ReferencesWithTitle returns the set of references carried by notifications with this
// title. One paginated scan serves a whole sweep.
func (r *NotificationRepo) ReferencesWithTitle(ctx context.Context, title string) (map[string]struct{}, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#t = :t AND attribute_exists(#ref)"),
		ExpressionAttributeNames: map[string]string{
			"#ref": fieldReference,
			"#t":   fieldTitle,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: title},
		},
		ProjectionExpression: aws.String("#ref"),
	})
	refs := make(map[string]struct{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr("scan notifications", err)
		}
		for _, item := range page.Items {
			if v, ok := item[fieldReference].(*types.AttributeValueMemberS); ok && v.Value != "" {
				refs[v.Value] = struct{}{}
			}
		}
	}
	return refs, nil
}

// MarkRead adds identity to is_read_by. Adding an existing member is a no-op.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, identity string) (*domain.Notification, error) {
	return r.addToSets(ctx, notificationID, identity, fieldIsReadBy)
}

// MarkReadAndActed adds identity to is_read_by and is_acted_by in one update.
func (r *NotificationRepo) MarkReadAndActed(ctx context.Context, notificationID, identity string) (*domain.Notification, error) {
	return r.addToSets(ctx, notificationID, identity, fieldIsReadBy, fieldIsActedBy)
}

// addToSets adds identity to each named string set in one atomic update and returns
// the updated notification.
func (r *NotificationRepo) addToSets(ctx context.Context, notificationID, identity string, sets ...string) (*domain.Notification, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("no sets to update")
	}
	names := map[string]string{"#id": fieldNotificationID}
	expr := "ADD "
	for i, set := range sets {
		key := fmt.Sprintf("#s%d", i)
		names[key] = set
		if i > 0 {
			expr += ", "
		}
		expr += key + " :who"
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldNotificationID, notificationID),
		UpdateExpression:         aws.String(expr),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: names,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":who": &types.AttributeValueMemberSS{Value: []string{identity}},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
		}
		return nil, storeErr("update notification", err)
	}
	publish(r.feed, changefeed.Notifications, changefeed.OpUpdate, notificationID)
	return unmarshalNotification(out.Attributes)
}

func (r *NotificationRepo) scan(ctx context.Context, in *dynamodb.ScanInput) ([]domain.Notification, error) {
	out := []domain.Notification{}
	p := dynamodb.NewScanPaginator(r.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr("scan notifications", err)
		}
		var recs []notificationRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal notifications: %w", err)
		}
		for _, rec := range recs {
			out = append(out, rec.toDomain())
		}
	}
	return out, nil
}
