// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "time"

// SuccessMessage is the message of every successful JSON response.
const SuccessMessage = "Success"

// SuccessResponse is the envelope of every successful JSON response.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ShortenRequest represents the request body of POST /api/shorten.
type ShortenRequest struct {
	LongURL     string `json:"longUrl" validate:"required,max=2048,http_url"`
	CustomAlias string `json:"customAlias,omitempty" validate:"omitempty,alias"`
	Topic       string `json:"topic,omitempty" validate:"omitempty,min=3,max=100"`
}

// ShortenResponse is the data of a created short URL.
type ShortenResponse struct {
	ShortURL  string    `json:"shortUrl"`
	Alias     string    `json:"alias"`
	CreatedAt time.Time `json:"createdAt"`
}
