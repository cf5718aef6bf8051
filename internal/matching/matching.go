// Package matching ranks open blood requests for a caller: distance
// annotation, radius filtering, ordering and pagination.
package matching

import (
	"math"
	"sort"

	"bloodmatch/internal/entity"
	"bloodmatch/pkg/geo"
)

type RequestView struct {
	Request    entity.BloodRequest
	DistanceKm *float64
}

type Criteria struct {
	Location *geo.Point
	// RadiusKm only applies when Location is set.
	RadiusKm float64
	Page     int
	PerPage  int
}

// Match expects requests already restricted to open, unexpired ones in newest-first
// order; that order is kept for ties. total counts the filtered set before paging.
// Requests without a stored location are never excluded by the radius.
func Match(requests []entity.BloodRequest, c Criteria) (items []RequestView, total int) {
	views := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		view := RequestView{Request: r}

		if c.Location != nil {
			if loc := r.Location(); loc != nil {
				d := geo.Between(*c.Location, *loc)
				if d > c.RadiusKm {
					continue
				}
				view.DistanceKm = &d
			}
		}

		views = append(views, view)
	}

	if c.Location != nil {
		sort.SliceStable(views, func(i, j int) bool {
			return distanceOrInf(views[i]) < distanceOrInf(views[j])
		})
	} else {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Request.CreatedAt.After(views[j].Request.CreatedAt)
		})
	}

	return paginate(views, entity.NewPaginationInput(c.Page, c.PerPage)), len(views)
}

func distanceOrInf(v RequestView) float64 {
	if v.DistanceKm == nil {
		return math.Inf(1)
	}

	return *v.DistanceKm
}

func paginate(views []RequestView, p *entity.PaginationInput) []RequestView {
	start := p.Offset()
	if start >= len(views) || start < 0 {
		return []RequestView{}
	}

	end := start + p.Limit()
	if end > len(views) {
		end = len(views)
	}

	return views[start:end]
}
