package service

import (
	"math"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/matching"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func mapBloodRequest(r *entity.BloodRequest, now time.Time) *entity.BloodRequestOutputModel {
	out := &entity.BloodRequestOutputModel{
		Id:           r.Id,
		Title:        r.Title,
		BloodGroup:   r.BloodGroup,
		UnitsNeeded:  r.UnitsNeeded,
		ContactName:  r.ContactName,
		ContactPhone: r.ContactPhone,
		ContactEmail: r.ContactEmail,
		Address:      r.Address,
		Lat:          r.Lat,
		Lng:          r.Lng,
		CreatedAt:    formatTime(r.CreatedAt),
		IsOpen:       r.IsOpen,
		Status:       string(r.Status(now)),
		Description:  r.Description,
		DonorCount:   r.DonorCount,
	}
	if r.ExpiresAt != nil {
		expires := formatTime(*r.ExpiresAt)
		out.ExpiresAt = &expires
	}

	return out
}

func mapRequestViews(views []matching.RequestView, now time.Time) []entity.BloodRequestOutputModel {
	s := make([]entity.BloodRequestOutputModel, 0, len(views))
	for _, v := range views {
		out := mapBloodRequest(&v.Request, now)
		if v.DistanceKm != nil {
			d := round(*v.DistanceKm, 2)
			out.DistanceKm = &d
		}
		s = append(s, *out)
	}

	return s
}

func mapDonor(d *entity.DonorOptIn) *entity.DonorOutputModel {
	return &entity.DonorOutputModel{
		Id:                   d.Id,
		RequestId:            d.RequestId,
		DonorName:            d.DonorName,
		DonorContact:         d.DonorContact,
		DonorBloodGroup:      d.DonorBloodGroup,
		PredictionConfidence: d.PredictionConfidence,
		CreatedAt:            formatTime(d.CreatedAt),
	}
}

func mapDonors(donors []entity.DonorOptIn) []entity.DonorOutputModel {
	s := make([]entity.DonorOutputModel, 0, len(donors))
	for _, d := range donors {
		s = append(s, *mapDonor(&d))
	}

	return s
}
