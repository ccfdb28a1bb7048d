// Package dynamo stores membership records in a DynamoDB table keyed by
// PK/SK = member id. The record type index has recordType as its partition
// key and PK as its sort key, so a descending query with limit 1 yields the
// latest allocated id.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"membership/internal/membership/models"
	id "membership/pkg/domain"
	"membership/pkg/platform/sentinel"
)

// API is the subset of the DynamoDB client used by Table.
type API interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type Table struct {
	client    API
	tableName string
	indexName string
}

func New(client API, tableName, indexName string) *Table {
	return &Table{client: client, tableName: tableName, indexName: indexName}
}

// NewFromConfig builds a Table backed by the SDK client.
func NewFromConfig(cfg aws.Config, tableName, indexName string) *Table {
	return New(dynamodb.NewFromConfig(cfg), tableName, indexName)
}

type keyRow struct {
	PK string `dynamodbav:"PK"`
}

func (t *Table) LatestMemberID(ctx context.Context) (id.MemberID, error) {
	out, err := t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(t.tableName),
		IndexName:              aws.String(t.indexName),
		KeyConditionExpression: aws.String("recordType = :recordType"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":recordType": &types.AttributeValueMemberS{Value: models.RecordTypeMember},
		},
		ProjectionExpression: aws.String("PK"),
		ScanIndexForward:     aws.Bool(false),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return "", translate("query latest member", err)
	}
	if len(out.Items) == 0 {
		return "", sentinel.ErrNotFound
	}

	var rows []keyRow
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &rows); err != nil {
		return "", fmt.Errorf("decode latest member: %w", err)
	}
	return id.ParseMemberID(rows[0].PK)
}

func (t *Table) PutIfAbsent(ctx context.Context, record models.Record) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("encode member %s: %w", record.PK, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return translate("put member "+record.PK, err)
	}
	return nil
}

func (t *Table) Get(ctx context.Context, memberID id.MemberID) (models.Record, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: memberID.String()},
			"SK": &types.AttributeValueMemberS{Value: memberID.String()},
		},
	})
	if err != nil {
		return models.Record{}, translate("get member "+memberID.String(), err)
	}
	if len(out.Item) == 0 {
		return models.Record{}, fmt.Errorf("member %s: %w", memberID, sentinel.ErrNotFound)
	}
	var record models.Record
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return models.Record{}, fmt.Errorf("decode member %s: %w", memberID, err)
	}
	return record, nil
}

func translate(op string, err error) error {
	var (
		conditional *types.ConditionalCheckFailedException
		throughput  *types.ProvisionedThroughputExceededException
		notFound    *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &conditional):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrConflict, err))
	case errors.As(err, &throughput):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrUnavailable, err))
	case errors.As(err, &notFound):
		return fmt.Errorf("%s: table or index missing: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
