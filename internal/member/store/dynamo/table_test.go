package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership/internal/membership/models"
	id "membership/pkg/domain"
	"membership/pkg/platform/sentinel"
)

type fakeAPI struct {
	query    *dynamodb.QueryInput
	put      *dynamodb.PutItemInput
	queryOut *dynamodb.QueryOutput
	getOut   *dynamodb.GetItemOutput
	err      error
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = in
	if f.err != nil {
		return nil, f.err
	}
	if f.queryOut == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOut, nil
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func TestLatestMemberIDQuery(t *testing.T) {
	api := &fakeAPI{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{"PK": &types.AttributeValueMemberS{Value: "MEMBER#000041"}},
	}}}
	table := New(api, "members", "RecordTypeIndex")

	latest, err := table.LatestMemberID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id.MemberID("MEMBER#000041"), latest)

	assert.Equal(t, "members", aws.ToString(api.query.TableName))
	assert.Equal(t, "RecordTypeIndex", aws.ToString(api.query.IndexName))
	assert.Equal(t, "PK", aws.ToString(api.query.ProjectionExpression))
	assert.False(t, aws.ToBool(api.query.ScanIndexForward))
	assert.Equal(t, int32(1), aws.ToInt32(api.query.Limit))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "MEMBER"}, api.query.ExpressionAttributeValues[":recordType"])
}

func TestLatestMemberIDEmptyIndex(t *testing.T) {
	table := New(&fakeAPI{}, "members", "RecordTypeIndex")
	_, err := table.LatestMemberID(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestLatestMemberIDRejectsMalformedKey(t *testing.T) {
	api := &fakeAPI{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{"PK": &types.AttributeValueMemberS{Value: "USER#1"}},
	}}}
	_, err := New(api, "members", "RecordTypeIndex").LatestMemberID(context.Background())
	assert.Error(t, err)
}

func TestPutIfAbsentIsConditional(t *testing.T) {
	api := &fakeAPI{}
	table := New(api, "members", "RecordTypeIndex")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	record := models.NewRecord("MEMBER#000007", models.Applicant{
		FullName:       "Jane Doe",
		Email:          "jane@example.com",
		MembershipType: id.MembershipTypeAssociate,
	}, now)

	require.NoError(t, table.PutIfAbsent(context.Background(), record))
	assert.Equal(t, "attribute_not_exists(PK)", aws.ToString(api.put.ConditionExpression))

	var stored models.Record
	require.NoError(t, attributevalue.UnmarshalMap(api.put.Item, &stored))
	assert.Equal(t, record, stored)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "MEMBER"}, api.put.Item["recordType"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PENDING"}, api.put.Item["membershipStatus"])
}

func TestErrorTranslation(t *testing.T) {
	ctx := context.Background()
	record := models.NewRecord("MEMBER#000001", models.Applicant{}, time.Now())

	err := New(&fakeAPI{err: &types.ConditionalCheckFailedException{Message: aws.String("taken")}}, "m", "i").PutIfAbsent(ctx, record)
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	err = New(&fakeAPI{err: &types.ProvisionedThroughputExceededException{Message: aws.String("slow")}}, "m", "i").PutIfAbsent(ctx, record)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	cause := errors.New("network")
	err = New(&fakeAPI{err: cause}, "m", "i").PutIfAbsent(ctx, record)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, sentinel.ErrConflict)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	record := models.NewRecord("MEMBER#000003", models.Applicant{Email: "a@example.com"}, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	item, err := attributevalue.MarshalMap(record)
	require.NoError(t, err)

	got, err := New(&fakeAPI{getOut: &dynamodb.GetItemOutput{Item: item}}, "m", "i").Get(ctx, "MEMBER#000003")
	require.NoError(t, err)
	assert.Equal(t, record, got)

	_, err = New(&fakeAPI{}, "m", "i").Get(ctx, "MEMBER#000004")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
