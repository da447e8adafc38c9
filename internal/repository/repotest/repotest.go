// Package repotest provides an in-memory sqlite database migrated with every
// persistence model, for repository and service tests.
package repotest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trailmark/service-telemetry/internal/repository"
)

var dbSeq atomic.Int64

// Open returns a fresh in-memory database with the full schema applied.
// Each call gets a uniquely named database so tests stay independent while
// the connection pool still sees one shared store.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.WaypointModel{},
		&repository.TripModel{},
		&repository.TripProjectionModel{},
		&repository.VisitModel{},
		&repository.ObservationModel{},
		&repository.TrackingSessionModel{},
		&repository.LocationSampleModel{},
		&repository.AlertRecordModel{},
		&repository.NotificationModel{},
		&repository.PushSubscriptionModel{},
		&repository.HeadingSessionModel{},
		&repository.GroupPositionModel{},
		&repository.ChatMessageModel{},
	)
	require.NoError(t, err)

	return db
}
