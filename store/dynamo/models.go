package dynamostore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/goliatone/go-smarthome/core"
)

const (
	DefaultUserTable   = "User_Profile"
	DefaultDeviceTable = "Devices"

	attrUserID       = "user_id"
	attrAuthToken    = "auth_token"
	attrRefreshToken = "refresh_token"
	attrTimestamp    = "last_time_stamp"
	attrExpiresIn    = "expires_in"
	attrEndpointID   = "endpoint_id"
)

type userProfileItem struct {
	UserID        string  `dynamodbav:"user_id"`
	AuthToken     string  `dynamodbav:"auth_token"`
	RefreshToken  string  `dynamodbav:"refresh_token"`
	LastTimeStamp seconds `dynamodbav:"last_time_stamp"`
	ExpiresIn     seconds `dynamodbav:"expires_in"`
}

// seconds is written as N. Legacy rows carry unix times as S strings, so
// either form decodes.
type seconds int64

func (s *seconds) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch typed := av.(type) {
	case *types.AttributeValueMemberN:
		raw = typed.Value
	case *types.AttributeValueMemberS:
		raw = typed.Value
	case *types.AttributeValueMemberNULL:
		*s = 0
		return nil
	default:
		return fmt.Errorf("dynamostore: unsupported seconds attribute %T", av)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*s = 0
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("dynamostore: parse seconds %q: %w", raw, err)
	}
	*s = seconds(value)
	return nil
}

type deviceItem struct {
	EndpointID   string `dynamodbav:"endpoint_id"`
	UserID       string `dynamodbav:"user_id"`
	FriendlyName string `dynamodbav:"friendly_name"`
}

func (i userProfileItem) toDomain() core.TokenRecord {
	return core.TokenRecord{
		UserID:       i.UserID,
		AccessToken:  i.AuthToken,
		RefreshToken: i.RefreshToken,
		IssuedAt:     int64(i.LastTimeStamp),
		ExpiresIn:    int64(i.ExpiresIn),
	}
}

func (i deviceItem) toDomain() core.DeviceRecord {
	return core.DeviceRecord{
		EndpointID:   i.EndpointID,
		UserID:       i.UserID,
		FriendlyName: i.FriendlyName,
	}
}
