package dynamostore

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/goliatone/go-smarthome/core"
)

var (
	_ API                  = (*dynamodb.Client)(nil)
	_ core.CredentialStore = (*CredentialStore)(nil)
	_ core.DeviceStore     = (*DeviceStore)(nil)
	_ core.StoreProvider   = (*Stores)(nil)
)
