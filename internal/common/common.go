package common

// Blood group codes accepted for requests and donors.
const (
	APositive  = "A+"
	ANegative  = "A-"
	ABPositive = "AB+"
	ABNegative = "AB-"
	BPositive  = "B+"
	BNegative  = "B-"
	OPositive  = "O+"
	ONegative  = "O-"
)

var BloodGroups = []string{APositive, ANegative, ABPositive, ABNegative, BPositive, BNegative, OPositive, ONegative}

func IsBloodGroup(s string) bool {
	for _, g := range BloodGroups {
		if g == s {
			return true
		}
	}

	return false
}

// Request states as rendered to clients.
const (
	Open    = "open"
	Expired = "expired"
	Closed  = "closed"
)

const (
	DefaultRadiusKm    = 15.0
	DefaultPage        = 1
	DefaultPerPage     = 10
	MaxPerPage         = 100
	DefaultUnitsNeeded = 1
	DefaultThreshold   = 0.65
)
