package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/iPranay05/Skill-Prob-sub002/models"
)

// DynamoAPI is the subset of the DynamoDB client the capacity store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoCapacityRepository keeps capacity counters in a DynamoDB table keyed
// by course_id. Writes are conditional UpdateItem calls and do not join the
// Postgres transaction.
type DynamoCapacityRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoCapacityRepository(client DynamoAPI, table string) *DynamoCapacityRepository {
	return &DynamoCapacityRepository{client: client, table: table}
}

type ddbCapacity struct {
	CourseID          string `dynamodbav:"course_id"`
	MaxStudents       *int   `dynamodbav:"max_students,omitempty"`
	CurrentEnrollment int    `dynamodbav:"current_enrollment"`
	WaitlistCount     int    `dynamodbav:"waitlist_count"`
	UpdatedAt         string `dynamodbav:"updated_at"`
}

func (d ddbCapacity) toModel() (*models.CourseCapacity, error) {
	id, err := uuid.Parse(d.CourseID)
	if err != nil {
		return nil, fmt.Errorf("invalid course_id %q: %w", d.CourseID, err)
	}
	capacity := &models.CourseCapacity{
		CourseID:          id,
		MaxStudents:       d.MaxStudents,
		CurrentEnrollment: d.CurrentEnrollment,
		WaitlistCount:     d.WaitlistCount,
	}
	if t, err := time.Parse(time.RFC3339, d.UpdatedAt); err == nil {
		capacity.UpdatedAt = t
	}
	return capacity, nil
}

func (r *DynamoCapacityRepository) JoinsTransaction() bool { return false }

func (r *DynamoCapacityRepository) key(courseID uuid.UUID) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"course_id": courseID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (r *DynamoCapacityRepository) Get(ctx context.Context, courseID uuid.UUID) (*models.CourseCapacity, error) {
	key, err := r.key(courseID)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.table,
		Key:            key,
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return unmarshalCapacity(out.Item)
}

// Reserve increments current_enrollment only while it is below max_students
// (or max_students is absent).
func (r *DynamoCapacityRepository) Reserve(ctx context.Context, courseID uuid.UUID) (*models.CourseCapacity, error) {
	key, err := r.key(courseID)
	if err != nil {
		return nil, err
	}

	expr := "SET #cur = #cur + :one, updated_at = :now"
	condExpr := "attribute_exists(course_id) AND (attribute_not_exists(#max) OR #cur < #max)"

	oneAV, _ := attributevalue.Marshal(1)
	nowAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": oneAV,
			":now": nowAV,
		},
		ExpressionAttributeNames: map[string]string{
			"#cur": "current_enrollment",
			"#max": "max_students",
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, r.classifyRejection(ctx, courseID)
		}
		var tce *types.TransactionConflictException
		if errors.As(err, &tce) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("reserve failed: %w", err)
	}
	return unmarshalCapacity(out.Attributes)
}

// classifyRejection explains a failed conditional reserve.
func (r *DynamoCapacityRepository) classifyRejection(ctx context.Context, courseID uuid.UUID) error {
	current, err := r.Get(ctx, courseID)
	if err != nil {
		return err
	}
	if current.MaxStudents != nil && current.CurrentEnrollment >= *current.MaxStudents {
		return ErrCapacityExceeded
	}
	return ErrConcurrentUpdate
}

func (r *DynamoCapacityRepository) Release(ctx context.Context, courseID uuid.UUID) error {
	key, err := r.key(courseID)
	if err != nil {
		return err
	}

	expr := "SET #cur = #cur - :one, updated_at = :now"
	condExpr := "attribute_exists(course_id) AND #cur > :zero"

	oneAV, _ := attributevalue.Marshal(1)
	zeroAV, _ := attributevalue.Marshal(0)
	nowAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  oneAV,
			":zero": zeroAV,
			":now":  nowAV,
		},
		ExpressionAttributeNames: map[string]string{"#cur": "current_enrollment"},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if _, getErr := r.Get(ctx, courseID); getErr != nil {
				return getErr
			}
			return nil
		}
		return fmt.Errorf("release failed: %w", err)
	}
	return nil
}

func (r *DynamoCapacityRepository) SetMaxStudents(ctx context.Context, courseID uuid.UUID, max *int) (*models.CourseCapacity, error) {
	key, err := r.key(courseID)
	if err != nil {
		return nil, err
	}

	zeroAV, _ := attributevalue.Marshal(0)
	nowAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))
	values := map[string]types.AttributeValue{
		":zero": zeroAV,
		":now":  nowAV,
	}
	names := map[string]string{
		"#cur":  "current_enrollment",
		"#wait": "waitlist_count",
		"#max":  "max_students",
	}

	expr := "SET #cur = if_not_exists(#cur, :zero), #wait = if_not_exists(#wait, :zero), updated_at = :now"
	var condExpr *string
	if max != nil {
		maxAV, _ := attributevalue.Marshal(*max)
		values[":max"] = maxAV
		expr += ", #max = :max"
		cond := "attribute_not_exists(#cur) OR #cur <= :max"
		condExpr = &cond
	} else {
		expr += " REMOVE #max"
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.table,
		Key:                       key,
		UpdateExpression:          &expr,
		ConditionExpression:       condExpr,
		ExpressionAttributeValues: values,
		ExpressionAttributeNames:  names,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrBelowEnrollment
		}
		return nil, fmt.Errorf("set max_students failed: %w", err)
	}
	return unmarshalCapacity(out.Attributes)
}

func unmarshalCapacity(item map[string]types.AttributeValue) (*models.CourseCapacity, error) {
	var dc ddbCapacity
	if err := attributevalue.UnmarshalMap(item, &dc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return dc.toModel()
}

func boolPtr(b bool) *bool { return &b }
