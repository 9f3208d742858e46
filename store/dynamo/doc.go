// Package dynamostore persists token records and device ownership in the
// User_Profile and Devices DynamoDB tables.
//
// User_Profile is keyed by user_id and carries auth_token, refresh_token,
// last_time_stamp (epoch seconds) and expires_in. Devices is keyed by
// endpoint_id and carries user_id and friendly_name.
package dynamostore
