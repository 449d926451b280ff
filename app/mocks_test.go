package app

import (
	"context"

	"qcgallery/domain/inspection"

	"github.com/stretchr/testify/mock"
)

type MockFactoryRepository struct {
	mock.Mock
}

func (m *MockFactoryRepository) ListFactories(ctx context.Context) ([]inspection.Factory, error) {
	args := m.Called(ctx)
	factories, _ := args.Get(0).([]inspection.Factory)
	return factories, args.Error(1)
}

type MockInspectionRepository struct {
	mock.Mock
}

func (m *MockInspectionRepository) List(ctx context.Context, c inspection.Criteria) ([]inspection.Inspection, error) {
	args := m.Called(ctx, c)
	items, _ := args.Get(0).([]inspection.Inspection)
	return items, args.Error(1)
}

func (m *MockInspectionRepository) Stats(ctx context.Context, c inspection.Criteria) (inspection.Stats, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(inspection.Stats), args.Error(1)
}

func (m *MockInspectionRepository) Query(ctx context.Context, c inspection.Criteria) (inspection.Page, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(inspection.Page), args.Error(1)
}

func (m *MockInspectionRepository) DefectTypes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	types, _ := args.Get(0).([]string)
	return types, args.Error(1)
}

var fixtureFactories = []inspection.Factory{
	{FactoryID: "SHA-SH01", Region: "SHA", Cameras: []string{"CAM-02"}},
	{FactoryID: "WUH-A79", Region: "WUH", Cameras: []string{"CAM-01", "CAM-02"}},
	{FactoryID: "WUH-G426", Region: "WUH", Cameras: []string{"CAM-01"}},
}
