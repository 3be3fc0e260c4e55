package models

import "time"

// FoodLog is one persisted analysis record for a user: the uploaded image,
// the OCR extraction, and the generated verdict.
type FoodLog struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"user_id" db:"user_id"`
	ImageURL  string                 `json:"image_url" db:"image_url"`
	OCRResult map[string]interface{} `json:"ocr_result" db:"ocr_result"`
	Prompt    string                 `json:"prompt" db:"prompt"`
	Response  map[string]interface{} `json:"response" db:"response"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
