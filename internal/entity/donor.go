package entity

import "time"

// db model
type DonorOptIn struct {
	Id                   int64     `db:"id"`
	RequestId            int64     `db:"request_id"`
	DonorName            string    `db:"donor_name"`
	DonorContact         string    `db:"donor_contact"`
	DonorBloodGroup      string    `db:"donor_blood_group"`
	PredictionConfidence float64   `db:"prediction_confidence"`
	CreatedAt            time.Time `db:"created_at"`
}

type DonorInfo struct {
	Name       string
	Contact    string
	BloodGroup string
}

// service + repo input model
type CreateDonorOptInInput struct {
	RequestId            int64
	DonorName            string
	DonorContact         string
	DonorBloodGroup      string
	PredictionConfidence float64
	CreatedAt            time.Time
}

// OptInResult is the admission decision taken when the opt-in was recorded.
// Confidence and AllowedToDonate are nil when no prediction was available.
type OptInResult struct {
	DonorId             int64
	RequestId           int64
	CreatedAt           time.Time
	PredictionAvailable bool
	Confidence          *float64
	AllowedToDonate     *bool
	Threshold           float64
}

// controller model
type DonorOutputModel struct {
	Id                   int64   `json:"id"`
	RequestId            int64   `json:"request_id"`
	DonorName            string  `json:"donor_name"`
	DonorContact         string  `json:"donor_contact"`
	DonorBloodGroup      string  `json:"donor_blood_group"`
	PredictionConfidence float64 `json:"prediction_confidence"`
	CreatedAt            string  `json:"created_at"`
}

type OptInOutputModel struct {
	Message             string   `json:"message"`
	DonorId             int64    `json:"donor_id"`
	RequestId           int64    `json:"request_id"`
	CreatedAt           string   `json:"created_at"`
	PredictionAvailable bool     `json:"prediction_available"`
	Confidence          *float64 `json:"confidence"`
	AllowedToDonate     *bool    `json:"allowed_to_donate"`
	Threshold           float64  `json:"threshold"`
}
