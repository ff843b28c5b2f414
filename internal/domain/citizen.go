package domain

import "time"

type Citizen struct {
	CitizenID      string     `json:"id" dynamodbav:"citizen_id"`
	PrimaryEmail   string     `json:"primary_email" dynamodbav:"primary_email"`
	SecondaryEmail *string    `json:"secondary_email,omitempty" dynamodbav:"secondary_email"`
	Phone          *string    `json:"phone,omitempty" dynamodbav:"phone"`
	FirstName      string     `json:"first_name" dynamodbav:"first_name"`
	LastName       string     `json:"last_name" dynamodbav:"last_name"`
	Telegram       *string    `json:"telegram,omitempty" dynamodbav:"telegram"`
	Organization   *string    `json:"organization,omitempty" dynamodbav:"organization"`
	EmailValidated bool       `json:"email_validated" dynamodbav:"email_validated"`
	PhoneConfirmed bool       `json:"phone_confirmed" dynamodbav:"phone_confirmed"`
	Enable         bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type CreateCitizenRequest struct {
	PrimaryEmail   string  `json:"primary_email" validate:"required,email"`
	SecondaryEmail *string `json:"secondary_email" validate:"omitempty,email"`
	Phone          *string `json:"phone"`
	FirstName      string  `json:"first_name" validate:"required"`
	LastName       string  `json:"last_name" validate:"required"`
	Telegram       *string `json:"telegram"`
	Organization   *string `json:"organization"`
}

type UpdateCitizenRequest struct {
	SecondaryEmail *string `json:"secondary_email" validate:"omitempty,email"`
	Phone          *string `json:"phone"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Telegram       *string `json:"telegram"`
	Organization   *string `json:"organization"`
}
