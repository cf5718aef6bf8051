package service

import (
	"context"
	"sync"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/repo"
	"bloodmatch/internal/repo/repo_errors"
	"bloodmatch/pkg/classifier"
)

// memoryStore backs the repo interfaces with maps so service rules can be
// checked without a database.
type memoryStore struct {
	mu          sync.Mutex
	nextId      int64
	requests    map[int64]*entity.BloodRequest
	donors      []entity.DonorOptIn
	predictions []entity.PredictionRecord
	err         error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{requests: map[int64]*entity.BloodRequest{}}
}

func (m *memoryStore) repos() *repo.Repositories {
	return &repo.Repositories{
		Diagnostics:  m,
		BloodRequest: m,
		Donor:        m,
		Prediction:   m,
	}
}

func (m *memoryStore) put(r entity.BloodRequest) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextId++
	r.Id = m.nextId
	m.requests[r.Id] = &r
	return r.Id
}

func (m *memoryStore) Ping(context.Context) error {
	return m.err
}

func (m *memoryStore) CreateBloodRequest(_ context.Context, input *entity.CreateBloodRequestInput) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}

	return m.put(entity.BloodRequest{
		Title:        input.Title,
		BloodGroup:   input.BloodGroup,
		UnitsNeeded:  input.UnitsNeeded,
		ContactName:  input.ContactName,
		ContactPhone: input.ContactPhone,
		ContactEmail: input.ContactEmail,
		Address:      input.Address,
		Lat:          input.Lat,
		Lng:          input.Lng,
		CreatedAt:    input.CreatedAt,
		ExpiresAt:    input.ExpiresAt,
		IsOpen:       true,
		Description:  input.Description,
	}), nil
}

func (m *memoryStore) GetBloodRequestById(_ context.Context, id int64) (*entity.BloodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.requests[id]
	if !ok {
		return nil, repo_errors.ErrNotFound
	}

	out := *r
	for _, d := range m.donors {
		if d.RequestId == id {
			out.DonorCount++
		}
	}

	return &out, nil
}

func (m *memoryStore) GetOpenBloodRequests(_ context.Context, bloodGroup string, now time.Time) ([]entity.BloodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var out []entity.BloodRequest
	for id := int64(1); id <= m.nextId; id++ {
		r, ok := m.requests[id]
		if !ok || !r.AcceptsDonorsAt(now) {
			continue
		}
		if bloodGroup != "" && r.BloodGroup != bloodGroup {
			continue
		}
		out = append(out, *r)
	}

	return out, nil
}

func (m *memoryStore) CloseBloodRequestById(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	r, ok := m.requests[id]
	if !ok {
		return repo_errors.ErrNotFound
	}
	r.IsOpen = false

	return nil
}

func (m *memoryStore) CloseExpiredBloodRequests(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	var closed int64
	for _, r := range m.requests {
		if r.IsOpen && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			r.IsOpen = false
			closed++
		}
	}

	return closed, nil
}

func (m *memoryStore) CreateDonorOptIn(_ context.Context, input *entity.CreateDonorOptInInput) (*entity.DonorOptIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.requests[input.RequestId]
	if !ok {
		return nil, repo_errors.ErrNotFound
	}
	if !r.AcceptsDonorsAt(input.CreatedAt) {
		return nil, repo_errors.ErrRequestClosed
	}

	d := entity.DonorOptIn{
		Id:                   int64(len(m.donors) + 1),
		RequestId:            input.RequestId,
		DonorName:            input.DonorName,
		DonorContact:         input.DonorContact,
		DonorBloodGroup:      input.DonorBloodGroup,
		PredictionConfidence: input.PredictionConfidence,
		CreatedAt:            input.CreatedAt,
	}
	m.donors = append(m.donors, d)

	return &d, nil
}

func (m *memoryStore) GetDonorsByRequestId(_ context.Context, requestId int64) ([]entity.DonorOptIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	out := []entity.DonorOptIn{}
	for i := len(m.donors) - 1; i >= 0; i-- {
		if m.donors[i].RequestId == requestId {
			out = append(out, m.donors[i])
		}
	}

	return out, nil
}

func (m *memoryStore) CreatePredictionRecord(_ context.Context, record *entity.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.predictions = append(m.predictions, *record)

	return nil
}

type stubClassifier struct {
	prediction *classifier.Prediction
	err        error
	calls      int
}

func (c *stubClassifier) Predict(context.Context, []byte) (*classifier.Prediction, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}

	p := *c.prediction
	return &p, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServices(store *memoryStore, c classifier.Classifier) *Services {
	return NewServices(Deps{
		Repos:      store.repos(),
		Classifier: c,
		Threshold:  0.65,
		Now:        func() time.Time { return fixedNow },
	})
}

func ptr[T any](v T) *T {
	return &v
}
