package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/models"
	"github.com/taobei/auth/internal/validate"
)

const userCounterPK = "COUNTER#users"

type DynamoUserRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
	now       func() time.Time
}

func NewDynamoUserRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *DynamoUserRepository {
	return &DynamoUserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *DynamoUserRepository) FindByPhone(ctx context.Context, phoneNumber string) (*models.User, error) {
	if !validate.PhoneNumber(phoneNumber) {
		return nil, validate.ErrInvalidPhone
	}

	user := &models.User{PhoneNumber: phoneNumber}
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, internalErr("failed to get user", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var dbUser models.User
	if err := attributevalue.UnmarshalMap(result.Item, &dbUser); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, internalErr("failed to unmarshal user", err)
	}

	return &dbUser, nil
}

func (r *DynamoUserRepository) Create(ctx context.Context, phoneNumber, passwordHash string) (*models.User, error) {
	if !validate.PhoneNumber(phoneNumber) {
		return nil, validate.ErrInvalidPhone
	}

	existing, err := r.FindByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           id,
		PhoneNumber:  phoneNumber,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
	}

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return nil, internalErr("failed to marshal user", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: user.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: user.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrUserExists
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return nil, internalErr("failed to create user", err)
	}

	return user, nil
}

// nextID atomically increments the user id counter item.
func (r *DynamoUserRepository) nextID(ctx context.Context) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userCounterPK},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression:         aws.String("ADD #seq :one"),
		ExpressionAttributeNames: map[string]string{"#seq": "seq"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to allocate user id")
		return 0, internalErr("failed to allocate user id", err)
	}

	seq, ok := out.Attributes["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, internalErr("failed to allocate user id", fmt.Errorf("counter attribute missing"))
	}
	id, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, internalErr("failed to allocate user id", err)
	}
	return id, nil
}
