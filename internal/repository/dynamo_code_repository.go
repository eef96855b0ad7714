package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/models"
	"github.com/taobei/auth/internal/validate"
)

// DynamoAPI is the subset of *dynamodb.Client used by the DynamoDB
// repositories.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type DynamoCodeRepository struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

func NewDynamoCodeRepository(client DynamoAPI, tableName string, ttl time.Duration, logger *logrus.Logger) *DynamoCodeRepository {
	return &DynamoCodeRepository{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

func codeKey(phoneNumber string) map[string]types.AttributeValue {
	record := models.VerificationCode{PhoneNumber: phoneNumber}
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: record.GetPK()},
		"SK": &types.AttributeValueMemberS{Value: record.GetSK()},
	}
}

// Save writes the code item for phoneNumber. The item is keyed by phone, so
// a put replaces any previous code atomically.
func (r *DynamoCodeRepository) Save(ctx context.Context, phoneNumber, code string, expiresAt time.Time) (time.Time, error) {
	if !validate.PhoneNumber(phoneNumber) {
		return time.Time{}, validate.ErrInvalidPhone
	}
	if !validate.Code(code) {
		return time.Time{}, validate.ErrInvalidCode
	}

	now := r.now().UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(r.ttl)
	}

	record := models.VerificationCode{
		PhoneNumber: phoneNumber,
		Code:        code,
		ExpiresAt:   expiresAt.UTC(),
		CreatedAt:   now,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return time.Time{}, internalErr("failed to marshal verification code", err)
	}
	for k, v := range codeKey(phoneNumber) {
		item[k] = v
	}
	// DynamoDB native TTL sweeps items some time after expiry.
	item["TTL"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt.Unix())}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to store verification code in DynamoDB")
		return time.Time{}, internalErr("failed to store verification code", err)
	}

	return expiresAt, nil
}

// Verify consumes the code item for phoneNumber if it holds code and has not
// expired. A wrong value leaves the item in place.
func (r *DynamoCodeRepository) Verify(ctx context.Context, phoneNumber, code string) error {
	if !validate.PhoneNumber(phoneNumber) {
		return validate.ErrInvalidPhone
	}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            codeKey(phoneNumber),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get verification code from DynamoDB")
		return internalErr("failed to read verification code", err)
	}
	if result.Item == nil {
		return ErrCodeNotFound
	}

	var record models.VerificationCode
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return internalErr("failed to unmarshal verification code", err)
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return ErrWrongCode
	}

	if record.IsExpired(r.now()) {
		if err := r.deleteIfUnchanged(ctx, phoneNumber, result.Item); err != nil && !isConditionFailed(err) {
			r.logger.WithError(err).Warn("Failed to delete expired verification code")
		}
		return ErrCodeExpired
	}

	if err := r.deleteIfUnchanged(ctx, phoneNumber, result.Item); err != nil {
		if isConditionFailed(err) {
			return ErrCodeNotFound
		}
		r.logger.WithError(err).Error("Failed to consume verification code in DynamoDB")
		return internalErr("failed to consume verification code", err)
	}

	return nil
}

// deleteIfUnchanged removes the item only while it still holds the code and
// expiry that were read, so a code replaced by a concurrent Save survives
// even when the new value happens to repeat the old one.
func (r *DynamoCodeRepository) deleteIfUnchanged(ctx context.Context, phoneNumber string, item map[string]types.AttributeValue) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 codeKey(phoneNumber),
		ConditionExpression: aws.String("#code = :code AND #exp = :exp"),
		ExpressionAttributeNames: map[string]string{
			"#code": "code",
			"#exp":  "expires_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code": item["code"],
			":exp":  item["expires_at"],
		},
	})
	return err
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
