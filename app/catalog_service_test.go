package app

import (
	"context"
	"testing"
	"time"

	"qcgallery/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCatalogCachesOptionLists(t *testing.T) {
	factories := &MockFactoryRepository{}
	inspections := &MockInspectionRepository{}
	factories.On("ListFactories", mock.Anything).Return(fixtureFactories, nil).Once()
	inspections.On("DefectTypes", mock.Anything).Return([]string{"porosity", "weld_crack"}, nil).Once()

	svc := NewCatalogService(factories, inspections, 5*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		opts, err := svc.FilterOptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"SHA", "WUH"}, opts.Regions)
		assert.Equal(t, []string{"SHA-SH01", "WUH-A79", "WUH-G426"}, opts.Factories)
		assert.Equal(t, []string{"CAM-01", "CAM-02"}, opts.Cameras)
		assert.Equal(t, []string{"porosity", "weld_crack"}, opts.DefectTypes)
	}

	factories.AssertExpectations(t)
	inspections.AssertExpectations(t)
}

func TestCatalogDerivedLookups(t *testing.T) {
	factories := &MockFactoryRepository{}
	factories.On("ListFactories", mock.Anything).Return(fixtureFactories, nil)
	svc := NewCatalogService(factories, &MockInspectionRepository{}, time.Minute, nil)
	ctx := context.Background()

	scope, err := svc.FactoryScope(ctx, "WUH")
	require.NoError(t, err)
	assert.Equal(t, []string{"WUH-A79", "WUH-G426"}, scope)

	scope, err = svc.FactoryScope(ctx, "NOWHERE")
	require.NoError(t, err)
	assert.NotNil(t, scope)
	assert.Empty(t, scope)

	cameras, err := svc.CamerasFor(ctx, "WUH-G426")
	require.NoError(t, err)
	assert.Equal(t, []string{"CAM-01"}, cameras)

	cameras, err = svc.CamerasFor(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CAM-01", "CAM-02"}, cameras)

	regions, err := svc.ListRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"SHA", "WUH"}, regions)
}

func TestFilterOptionsDegradeToEmpty(t *testing.T) {
	factories := &MockFactoryRepository{}
	inspections := &MockInspectionRepository{}
	factories.On("ListFactories", mock.Anything).Return(nil, errors.Unreachable("metadata", nil))
	inspections.On("DefectTypes", mock.Anything).Return([]string{"spatter"}, nil)

	svc := NewCatalogService(factories, inspections, time.Minute, nil)
	opts, err := svc.FilterOptions(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsUnreachable(err))
	assert.NotNil(t, opts.Factories)
	assert.Empty(t, opts.Factories)
	assert.Empty(t, opts.Regions)
	assert.Equal(t, []string{"spatter"}, opts.DefectTypes)
}

func TestFailuresAreNotCached(t *testing.T) {
	factories := &MockFactoryRepository{}
	factories.On("ListFactories", mock.Anything).Return(nil, errors.AuthFailure("metadata", nil)).Once()
	factories.On("ListFactories", mock.Anything).Return(fixtureFactories, nil).Once()

	svc := NewCatalogService(factories, &MockInspectionRepository{}, time.Minute, nil)
	_, err := svc.ListFactories(context.Background())
	assert.True(t, errors.IsAuthFailure(err))

	got, err := svc.ListFactories(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
	factories.AssertExpectations(t)
}

func TestNilDefectTypesBecomeEmpty(t *testing.T) {
	inspections := &MockInspectionRepository{}
	inspections.On("DefectTypes", mock.Anything).Return(nil, nil)
	svc := NewCatalogService(&MockFactoryRepository{}, inspections, time.Minute, nil)

	types, err := svc.ListDefectTypes(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, types)
	assert.Empty(t, types)
}
