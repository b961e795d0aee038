package consolidation

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/harborline/keel/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// fakeServiceStore is an in-memory ServiceStore. failCarriers lets a test
// make Create fail for specific carrier ids.
type fakeServiceStore struct {
	services     map[string]models.Service
	order        []string
	failCarriers map[string]bool
	createCalls  int
}

func newFakeServiceStore(services ...models.Service) *fakeServiceStore {
	s := &fakeServiceStore{
		services:     make(map[string]models.Service),
		failCarriers: make(map[string]bool),
	}
	for _, svc := range services {
		s.services[svc.ID] = svc
		s.order = append(s.order, svc.ID)
	}
	return s
}

func (s *fakeServiceStore) GetByID(_ context.Context, _ string, id string) (*models.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

func (s *fakeServiceStore) List(_ context.Context, _ string, filter models.ServiceFilter) ([]models.Service, error) {
	var out []models.Service
	for _, id := range s.order {
		svc := s.services[id]
		if filter.Active != nil && svc.Active != *filter.Active {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *fakeServiceStore) Create(_ context.Context, tenantID string, req models.CreateServiceRequest) (*models.Service, error) {
	s.createCalls++
	if s.failCarriers[req.CarrierID] {
		return nil, fmt.Errorf("create rejected for carrier %s", req.CarrierID)
	}

	svc := models.Service{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        req.Name,
		CarrierID:   req.CarrierID,
		CarrierName: req.CarrierName,
		Description: req.Description,
		Active:      req.Active,
		Vessels:     req.Vessels,
	}
	for _, d := range req.Destinations {
		svc.Destinations = append(svc.Destinations, models.Destination{
			ID:        uuid.New().String(),
			ServiceID: svc.ID,
			PortCode:  d.PortCode,
			PortName:  d.PortName,
			Region:    d.Region,
			Position:  d.Position,
		})
	}
	s.services[svc.ID] = svc
	s.order = append(s.order, svc.ID)
	return &svc, nil
}

type fakeConsortiumStore struct {
	consortiums map[string]models.Consortium
	createErr   error
}

func newFakeConsortiumStore() *fakeConsortiumStore {
	return &fakeConsortiumStore{consortiums: make(map[string]models.Consortium)}
}

func (s *fakeConsortiumStore) GetByID(_ context.Context, _ string, id string) (*models.Consortium, error) {
	c, ok := s.consortiums[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *fakeConsortiumStore) Create(_ context.Context, tenantID string, c *models.Consortium) (*models.Consortium, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	saved := *c
	saved.ID = uuid.New().String()
	saved.TenantID = tenantID
	s.consortiums[saved.ID] = saved
	return &saved, nil
}

func (s *fakeConsortiumStore) Update(_ context.Context, tenantID string, id string, c *models.Consortium) (*models.Consortium, error) {
	if _, ok := s.consortiums[id]; !ok {
		return nil, fmt.Errorf("consortium %s not found", id)
	}
	saved := *c
	saved.ID = id
	saved.TenantID = tenantID
	s.consortiums[id] = saved
	return &saved, nil
}

func (s *fakeConsortiumStore) Delete(_ context.Context, _ string, id string) error {
	delete(s.consortiums, id)
	return nil
}

func destination(portCode, portName string, region models.Region, position int) models.Destination {
	return models.Destination{
		ID:       uuid.New().String(),
		PortCode: portCode,
		PortName: portName,
		Region:   region,
		Position: position,
	}
}

func service(id, name, carrierID string, vessels []string, destinations ...models.Destination) models.Service {
	for i := range destinations {
		destinations[i].ServiceID = id
	}
	return models.Service{
		ID:           id,
		Name:         name,
		CarrierID:    carrierID,
		CarrierName:  "Carrier " + carrierID,
		Active:       true,
		Vessels:      vessels,
		Destinations: destinations,
	}
}
