package entity

import (
	"time"

	"github.com/google/uuid"
)

// PredictionRecord is the audit trail of classifier calls. Image data is never kept.
type PredictionRecord struct {
	Id             uuid.UUID `db:"id"`
	PredictedGroup string    `db:"predicted_group"`
	Confidence     float64   `db:"confidence"`
	IpAddress      string    `db:"ip_address"`
	CreatedAt      time.Time `db:"created_at"`
}

type PredictionOutputModel struct {
	PredictedGroup       string  `json:"predicted_group"`
	Confidence           float64 `json:"confidence"`
	ConfidencePercentage float64 `json:"confidence_percentage"`
	AllowedToDonate      bool    `json:"allowed_to_donate"`
	Threshold            float64 `json:"threshold"`
	Message              string  `json:"message"`
}
