package entity

import (
	"time"

	"bloodmatch/internal/common"
	"bloodmatch/pkg/geo"
)

type RequestStatus string

const (
	StatusOpen    RequestStatus = common.Open
	StatusExpired RequestStatus = common.Expired
	StatusClosed  RequestStatus = common.Closed
)

// db model
type BloodRequest struct {
	Id           int64      `db:"id"`
	Title        string     `db:"title"`
	BloodGroup   string     `db:"blood_group"`
	UnitsNeeded  int        `db:"units_needed"`
	ContactName  string     `db:"contact_name"`
	ContactPhone string     `db:"contact_phone"`
	ContactEmail string     `db:"contact_email"`
	Address      string     `db:"address"`
	Lat          *float64   `db:"lat"`
	Lng          *float64   `db:"lng"`
	CreatedAt    time.Time  `db:"created_at"`
	ExpiresAt    *time.Time `db:"expires_at"`
	IsOpen       bool       `db:"is_open"`
	Description  string     `db:"description"`
	DonorCount   int        `db:"-"`
}

// Location is nil unless both coordinates are stored.
func (r *BloodRequest) Location() *geo.Point {
	if r.Lat == nil || r.Lng == nil {
		return nil
	}

	return &geo.Point{Lat: *r.Lat, Lng: *r.Lng}
}

// Status derives the lifecycle state at now. A request still flagged open but past
// its expiry is expired until the next sweep closes it.
func (r *BloodRequest) Status(now time.Time) RequestStatus {
	if !r.IsOpen {
		return StatusClosed
	}
	if r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
		return StatusExpired
	}

	return StatusOpen
}

func (r *BloodRequest) AcceptsDonorsAt(now time.Time) bool {
	return r.Status(now) == StatusOpen
}

// service + repo input model
type CreateBloodRequestInput struct {
	Title        string     // given
	BloodGroup   string     // given
	UnitsNeeded  int        // given, defaults to 1
	ContactName  string     // given
	ContactPhone string     // given
	ContactEmail string     // given
	Address      string     // given
	Lat          *float64   // given, together with Lng
	Lng          *float64   // given, together with Lat
	ExpiresAt    *time.Time // given
	Description  string     // given
	CreatedAt    time.Time  // set by service
	// Id sets automatically
	// IsOpen starts true
}

type RequestFilter struct {
	BloodGroup string
	Location   *geo.Point
	RadiusKm   *float64 // nil means the default radius
	Pagination *PaginationInput
}

// controller model
type BloodRequestOutputModel struct {
	Id           int64    `json:"id"`
	Title        string   `json:"title"`
	BloodGroup   string   `json:"blood_group"`
	UnitsNeeded  int      `json:"units_needed"`
	ContactName  string   `json:"contact_name"`
	ContactPhone string   `json:"contact_phone"`
	ContactEmail string   `json:"contact_email"`
	Address      string   `json:"address"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	CreatedAt    string   `json:"created_at"`
	ExpiresAt    *string  `json:"expires_at"`
	IsOpen       bool     `json:"is_open"`
	Status       string   `json:"status"`
	Description  string   `json:"description"`
	DonorCount   int      `json:"donor_count"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
}

type BloodRequestListOutputModel struct {
	Requests []BloodRequestOutputModel `json:"requests"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PerPage  int                       `json:"per_page"`
}
