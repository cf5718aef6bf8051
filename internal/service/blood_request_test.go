package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateInput() *entity.CreateBloodRequestInput {
	return &entity.CreateBloodRequestInput{
		Title:        "  Surgery at St Mary  ",
		BloodGroup:   "O-",
		ContactName:  "Ward 4",
		ContactPhone: "+44 20 7946 0000",
	}
}

func TestCreateRequest(t *testing.T) {
	store := newMemoryStore()
	s := newTestServices(store, nil)

	out, err := s.BloodRequest.CreateRequest(context.Background(), validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, "Surgery at St Mary", out.Title)
	assert.Equal(t, 1, out.UnitsNeeded)
	assert.True(t, out.IsOpen)
	assert.Equal(t, "open", out.Status)
	assert.Equal(t, "2026-03-01T12:00:00Z", out.CreatedAt)
	assert.Nil(t, out.ExpiresAt)
	assert.Nil(t, out.DistanceKm)
}

func TestCreateRequestValidation(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(in *entity.CreateBloodRequestInput)
		field  string
	}{
		{"missing title", func(in *entity.CreateBloodRequestInput) { in.Title = "   " }, "title"},
		{"unknown group", func(in *entity.CreateBloodRequestInput) { in.BloodGroup = "C+" }, "blood_group"},
		{"missing phone", func(in *entity.CreateBloodRequestInput) { in.ContactPhone = "" }, "contact_phone"},
		{"negative units", func(in *entity.CreateBloodRequestInput) { in.UnitsNeeded = -2 }, "units_needed"},
		{"lat without lng", func(in *entity.CreateBloodRequestInput) { in.Lat = ptr(10.0) }, "lat"},
		{"lat out of range", func(in *entity.CreateBloodRequestInput) { in.Lat, in.Lng = ptr(91.0), ptr(0.0) }, "lat"},
		{"lng out of range", func(in *entity.CreateBloodRequestInput) { in.Lat, in.Lng = ptr(0.0), ptr(-181.0) }, "lng"},
		{"long phone", func(in *entity.CreateBloodRequestInput) { in.ContactPhone = strings.Repeat("9", 31) }, "contact_phone"},
		{"long email", func(in *entity.CreateBloodRequestInput) { in.ContactEmail = strings.Repeat("e", 121) }, "contact_email"},
		{"expired on arrival", func(in *entity.CreateBloodRequestInput) { in.ExpiresAt = ptr(fixedNow.Add(-time.Minute)) }, "expires_at"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			s := newTestServices(store, nil)

			in := validCreateInput()
			tc.modify(in)

			_, err := s.BloodRequest.CreateRequest(context.Background(), in)
			require.ErrorIs(t, err, ErrValidation)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.field, vErr.Field)
			assert.Empty(t, store.requests)
		})
	}
}

func TestGetRequestById(t *testing.T) {
	store := newMemoryStore()
	s := newTestServices(store, nil)

	expires := fixedNow.Add(-time.Hour)
	id := store.put(entity.BloodRequest{Title: "stale", BloodGroup: "A+", CreatedAt: fixedNow.Add(-2 * time.Hour), ExpiresAt: &expires, IsOpen: true})

	out, err := s.BloodRequest.GetRequestById(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, out.IsOpen)
	assert.Equal(t, "expired", out.Status)

	_, err = s.BloodRequest.GetRequestById(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseRequest(t *testing.T) {
	store := newMemoryStore()
	s := newTestServices(store, nil)
	id := store.put(entity.BloodRequest{Title: "t", BloodGroup: "B+", CreatedAt: fixedNow, IsOpen: true})

	out, err := s.BloodRequest.CloseRequest(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, out.IsOpen)
	assert.Equal(t, "closed", out.Status)

	// closing twice is a no-op
	out, err = s.BloodRequest.CloseRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "closed", out.Status)

	_, err = s.BloodRequest.CloseRequest(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRequestsFilters(t *testing.T) {
	store := newMemoryStore()
	s := newTestServices(store, nil)

	london := geo.Point{Lat: 51.5074, Lng: -0.1278}
	near := store.put(entity.BloodRequest{Title: "near", BloodGroup: "O+", Lat: ptr(51.5524), Lng: ptr(-0.1278), CreatedAt: fixedNow.Add(-3 * time.Hour), IsOpen: true})
	far := store.put(entity.BloodRequest{Title: "far", BloodGroup: "O+", Lat: ptr(51.7774), Lng: ptr(-0.1278), CreatedAt: fixedNow.Add(-2 * time.Hour), IsOpen: true})
	nowhere := store.put(entity.BloodRequest{Title: "no location", BloodGroup: "O+", CreatedAt: fixedNow.Add(-time.Hour), IsOpen: true})
	store.put(entity.BloodRequest{Title: "other group", BloodGroup: "AB-", CreatedAt: fixedNow, IsOpen: true})
	store.put(entity.BloodRequest{Title: "closed", BloodGroup: "O+", CreatedAt: fixedNow, IsOpen: false})
	store.put(entity.BloodRequest{Title: "expired", BloodGroup: "O+", CreatedAt: fixedNow, ExpiresAt: ptr(fixedNow), IsOpen: true})

	t.Run("group only, newest first", func(t *testing.T) {
		out, total, err := s.BloodRequest.ListRequests(context.Background(), &entity.RequestFilter{BloodGroup: "O+"})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, out, 3)
		assert.Equal(t, []int64{nowhere, far, near}, []int64{out[0].Id, out[1].Id, out[2].Id})
		for _, r := range out {
			assert.Nil(t, r.DistanceKm)
		}
	})

	t.Run("default radius with location", func(t *testing.T) {
		out, total, err := s.BloodRequest.ListRequests(context.Background(), &entity.RequestFilter{BloodGroup: "O+", Location: &london})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, out, 2)
		assert.Equal(t, near, out[0].Id)
		require.NotNil(t, out[0].DistanceKm)
		assert.InDelta(t, 5.0, *out[0].DistanceKm, 0.05)
		assert.Equal(t, nowhere, out[1].Id)
		assert.Nil(t, out[1].DistanceKm)
	})

	t.Run("wide radius sorts by distance", func(t *testing.T) {
		out, _, err := s.BloodRequest.ListRequests(context.Background(), &entity.RequestFilter{BloodGroup: "O+", Location: &london, RadiusKm: ptr(50.0)})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, []int64{near, far, nowhere}, []int64{out[0].Id, out[1].Id, out[2].Id})
		assert.LessOrEqual(t, *out[0].DistanceKm, *out[1].DistanceKm)
	})

	t.Run("page past the end", func(t *testing.T) {
		out, total, err := s.BloodRequest.ListRequests(context.Background(), &entity.RequestFilter{
			BloodGroup: "O+",
			Pagination: entity.NewPaginationInput(5, 10),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})
}

func TestListRequestsRejectsBadFilter(t *testing.T) {
	s := newTestServices(newMemoryStore(), nil)

	testCases := []struct {
		name   string
		filter entity.RequestFilter
	}{
		{"zero page", entity.RequestFilter{Pagination: entity.NewPaginationInput(0, 10)}},
		{"zero per page", entity.RequestFilter{Pagination: entity.NewPaginationInput(1, 0)}},
		{"per page too big", entity.RequestFilter{Pagination: entity.NewPaginationInput(1, 101)}},
		{"negative radius", entity.RequestFilter{RadiusKm: ptr(-1.0)}},
		{"unknown group", entity.RequestFilter{BloodGroup: "Z"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := s.BloodRequest.ListRequests(context.Background(), &tc.filter)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestStorageFailureIsCategorized(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection reset")
	s := newTestServices(store, nil)

	_, _, err := s.BloodRequest.ListRequests(context.Background(), &entity.RequestFilter{})
	assert.ErrorIs(t, err, ErrStorage)

	_, err = s.BloodRequest.GetRequestById(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStorage)
}
