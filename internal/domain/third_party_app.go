package domain

import "time"

// ThirdPartyApp is an external application authorized to request login
// codes on behalf of its users via the X-Api-Key header.
type ThirdPartyApp struct {
	AppID     string    `json:"id" dynamodbav:"app_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	APIKey    string    `json:"-" dynamodbav:"api_key"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}
