package postgres

import (
	"context"
	"testing"

	"qcgallery/domain/inspection"
	"qcgallery/internal/errors"
	"qcgallery/internal/mockdata"
	"qcgallery/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFactoriesOrderedWithCameras(t *testing.T) {
	db := testkit.NewSQLiteDB(t)
	testkit.InsertFactories(t, db, mockdata.FactoriesFor("YAN-YT01", "WUH-G426")...)
	testkit.InsertFactories(t, db, inspection.Factory{FactoryID: "SHA-SH01", Region: "SHA"})

	repo, err := NewFactoryRepository(StaticSource{DB: db}, testkit.FactoryTable, nil)
	require.NoError(t, err)

	factories, err := repo.ListFactories(context.Background())
	require.NoError(t, err)
	require.Len(t, factories, 3)

	assert.Equal(t, "SHA-SH01", factories[0].FactoryID)
	assert.Empty(t, factories[0].Cameras)
	assert.Equal(t, inspection.Factory{FactoryID: "WUH-G426", Region: "WUH", Cameras: []string{"CAM-01", "CAM-02"}}, factories[1])
	assert.Equal(t, "YAN", factories[2].Region)
}

func TestListFactoriesUnreachable(t *testing.T) {
	db := testkit.NewSQLiteDB(t)
	repo, err := NewFactoryRepository(StaticSource{DB: db}, testkit.FactoryTable, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = repo.ListFactories(context.Background())
	assert.True(t, errors.IsUnreachable(err))
}
