package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tribe-otp/internal/domain"
)

// codeItem is the stored shape of a one-time code.
// PK: identity. expires_at is the table's TTL attribute, so DynamoDB removes
// items passively once it passes; valid_until keeps full precision for the
// inline expiry check.
type codeItem struct {
	Identity   string    `dynamodbav:"identity"`
	CodeID     string    `dynamodbav:"code_id"`
	SecretHash string    `dynamodbav:"secret_hash"`
	Attempts   int       `dynamodbav:"attempts"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
	ValidUntil time.Time `dynamodbav:"valid_until"`
	ExpiresAt  int64     `dynamodbav:"expires_at"`
}

func toItem(c *domain.OneTimeCode) codeItem {
	return codeItem{
		Identity:   c.Identity,
		CodeID:     c.CodeID,
		SecretHash: c.SecretHash,
		Attempts:   c.Attempts,
		CreatedAt:  c.CreatedAt,
		ValidUntil: c.ExpiresAt,
		ExpiresAt:  ttlSeconds(c.ExpiresAt),
	}
}

func (it codeItem) toDomain() domain.OneTimeCode {
	return domain.OneTimeCode{
		Identity:   it.Identity,
		CodeID:     it.CodeID,
		SecretHash: it.SecretHash,
		Attempts:   it.Attempts,
		CreatedAt:  it.CreatedAt,
		ExpiresAt:  it.ValidUntil,
	}
}

// CodeRepo manages one-time codes in the one_time_codes table.
type CodeRepo struct {
	client    API
	tableName string
}

func NewCodeRepo(client API, tableName string) *CodeRepo {
	return &CodeRepo{client: client, tableName: tableName}
}

// Put overwrites whatever is stored for the identity.
func (r *CodeRepo) Put(ctx context.Context, c *domain.OneTimeCode) error {
	item, err := attributevalue.MarshalMap(toItem(c))
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *CodeRepo) Get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldIdentity, identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("code not found: %w", domain.ErrNotFound)
	}
	var it codeItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal code: %w", err)
	}
	c := it.toDomain()
	return &c, nil
}

// IncrementAttempts bumps attempts only while the item still carries codeID
// and is below max; a failed condition is reported as domain.ErrConflict.
func (r *CodeRepo) IncrementAttempts(ctx context.Context, identity, codeID string, max int) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey(fieldIdentity, identity),
		UpdateExpression:    aws.String("SET #a = #a + :one"),
		ConditionExpression: aws.String("#cid = :cid AND #a < :max"),
		ExpressionAttributeNames: map[string]string{
			"#a":   fieldAttempts,
			"#cid": fieldCodeID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":cid": &types.AttributeValueMemberS{Value: codeID},
			":max": &types.AttributeValueMemberN{Value: fmt.Sprint(max)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("increment attempts: %w", domain.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	var attempts int
	if err := attributevalue.Unmarshal(out.Attributes[fieldAttempts], &attempts); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return attempts, nil
}

// Delete removes the item if it still carries codeID.
func (r *CodeRepo) Delete(ctx context.Context, identity, codeID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldIdentity, identity),
		ConditionExpression:      aws.String("#cid = :cid"),
		ExpressionAttributeNames: map[string]string{"#cid": fieldCodeID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: codeID},
		},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}

// ListExpired scans for items whose TTL has passed but which DynamoDB has not
// reaped yet (TTL deletion can lag by hours).
func (r *CodeRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.OneTimeCode, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("#exp <= :now"),
		ExpressionAttributeNames: map[string]string{"#exp": fieldExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprint(now.Unix())},
		},
	})
	var out []domain.OneTimeCode
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []codeItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal codes: %w", err)
		}
		for _, it := range items {
			out = append(out, it.toDomain())
		}
	}
	return out, nil
}
