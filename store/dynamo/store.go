package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/goliatone/go-smarthome/core"
)

type Tables struct {
	Users   string
	Devices string
}

func (t Tables) normalized() Tables {
	t.Users = strings.TrimSpace(t.Users)
	t.Devices = strings.TrimSpace(t.Devices)
	if t.Users == "" {
		t.Users = DefaultUserTable
	}
	if t.Devices == "" {
		t.Devices = DefaultDeviceTable
	}
	return t
}

type CredentialStore struct {
	api    API
	tables Tables
}

type DeviceStore struct {
	api   API
	table string
}

// Stores bundles both tables behind core.StoreProvider.
type Stores struct {
	credentials *CredentialStore
	devices     *DeviceStore
}

func NewStores(api API, tables Tables) (*Stores, error) {
	if api == nil {
		return nil, fmt.Errorf("dynamostore: dynamodb client is required")
	}
	tables = tables.normalized()
	return &Stores{
		credentials: &CredentialStore{api: api, tables: tables},
		devices:     &DeviceStore{api: api, table: tables.Devices},
	}, nil
}

func (s *Stores) CredentialStore() core.CredentialStore {
	if s == nil || s.credentials == nil {
		return nil
	}
	return s.credentials
}

func (s *Stores) DeviceStore() core.DeviceStore {
	if s == nil || s.devices == nil {
		return nil
	}
	return s.devices
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (core.TokenRecord, error) {
	if s == nil || s.api == nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: credential store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: user id is required")
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Users),
		Key:            stringKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: get user profile: %w", err)
	}
	if len(out.Item) == 0 {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: token record for user %q: %w", userID, core.ErrRecordNotFound)
	}
	var item userProfileItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: decode user profile: %w", err)
	}
	return item.toDomain(), nil
}

func (s *CredentialStore) GetByDevice(ctx context.Context, endpointID string) (core.TokenRecord, error) {
	if s == nil || s.api == nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: credential store is not configured")
	}
	device, err := getDevice(ctx, s.api, s.tables.Devices, endpointID)
	if err != nil {
		return core.TokenRecord{}, err
	}
	return s.Get(ctx, device.UserID)
}

func (s *CredentialStore) Put(ctx context.Context, record core.TokenRecord) (core.TokenRecord, error) {
	if s == nil || s.api == nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: credential store is not configured")
	}
	record.UserID = strings.TrimSpace(record.UserID)
	if record.UserID == "" {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: user id is required")
	}
	item, err := attributevalue.MarshalMap(userProfileItem{
		UserID:        record.UserID,
		AuthToken:     record.AccessToken,
		RefreshToken:  record.RefreshToken,
		LastTimeStamp: seconds(record.IssuedAt),
		ExpiresIn:     seconds(record.ExpiresIn),
	})
	if err != nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: encode user profile: %w", err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Users),
		Item:      item,
	}); err != nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: put user profile: %w", err)
	}
	return record, nil
}

// UpdateAccessToken rewrites the token fields of an existing item only. The
// condition keeps a refresh from resurrecting a deleted user.
func (s *CredentialStore) UpdateAccessToken(ctx context.Context, userID string, update core.TokenUpdate) (core.TokenRecord, error) {
	if s == nil || s.api == nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: credential store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: user id is required")
	}
	if strings.TrimSpace(update.AccessToken) == "" {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: access token is required")
	}

	expression := "SET #token = :token, #ts = :ts, #exp = :exp"
	names := map[string]string{
		"#uid":   attrUserID,
		"#token": attrAuthToken,
		"#ts":    attrTimestamp,
		"#exp":   attrExpiresIn,
	}
	values := map[string]types.AttributeValue{
		":token": &types.AttributeValueMemberS{Value: update.AccessToken},
		":ts":    numberValue(update.IssuedAt),
		":exp":   numberValue(update.ExpiresIn),
	}
	if refresh := strings.TrimSpace(update.RefreshToken); refresh != "" {
		expression += ", #refresh = :refresh"
		names["#refresh"] = attrRefreshToken
		values[":refresh"] = &types.AttributeValueMemberS{Value: refresh}
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       stringKey(attrUserID, userID),
		UpdateExpression:          aws.String(expression),
		ConditionExpression:       aws.String("attribute_exists(#uid)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return core.TokenRecord{}, fmt.Errorf("dynamostore: token record for user %q: %w", userID, core.ErrRecordNotFound)
		}
		return core.TokenRecord{}, fmt.Errorf("dynamostore: update access token: %w", err)
	}
	var item userProfileItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return core.TokenRecord{}, fmt.Errorf("dynamostore: decode updated user profile: %w", err)
	}
	return item.toDomain(), nil
}

func (s *DeviceStore) Upsert(ctx context.Context, record core.DeviceRecord) (core.DeviceRecord, error) {
	if s == nil || s.api == nil {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: device store is not configured")
	}
	record = record.Normalized()
	if record.EndpointID == "" {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: endpoint id is required")
	}
	if record.UserID == "" {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: user id is required")
	}
	item, err := attributevalue.MarshalMap(deviceItem{
		EndpointID:   record.EndpointID,
		UserID:       record.UserID,
		FriendlyName: record.FriendlyName,
	})
	if err != nil {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: encode device: %w", err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: put device: %w", err)
	}
	return record, nil
}

func (s *DeviceStore) GetByEndpoint(ctx context.Context, endpointID string) (core.DeviceRecord, error) {
	if s == nil || s.api == nil {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: device store is not configured")
	}
	return getDevice(ctx, s.api, s.table, endpointID)
}

func getDevice(ctx context.Context, api API, table string, endpointID string) (core.DeviceRecord, error) {
	endpointID = strings.TrimSpace(endpointID)
	if endpointID == "" {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: endpoint id is required")
	}
	out, err := api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       stringKey(attrEndpointID, endpointID),
	})
	if err != nil {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: get device: %w", err)
	}
	if len(out.Item) == 0 {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: device %q: %w", endpointID, core.ErrRecordNotFound)
	}
	var item deviceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.DeviceRecord{}, fmt.Errorf("dynamostore: decode device: %w", err)
	}
	return item.toDomain(), nil
}

func stringKey(name string, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func numberValue(value int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(value, 10)}
}
