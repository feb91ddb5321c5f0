package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/apperr"
	"github.com/vtedit/core/pkg/notify"
)

func TestConvenienceMethodsUseDistinctTTLs(t *testing.T) {
	c := notify.New()
	c.Info("info")
	c.Warn("warn")
	c.Err("err")
	c.Success("success")

	active := c.Active()
	require.Len(t, active, 4)
	require.Equal(t, notify.InfoTTL, active[0].TTL)
	require.Equal(t, notify.WarningTTL, active[1].TTL)
	require.Equal(t, notify.ErrorTTL, active[2].TTL)
	require.Equal(t, notify.SuccessTTL, active[3].TTL)
}

func TestIDsAreUniqueAndIncreasing(t *testing.T) {
	c := notify.New()
	id1 := c.Info("a")
	id2 := c.Info("b")
	id3 := c.Info("c")
	require.Less(t, id1, id2)
	require.Less(t, id2, id3)
}

func TestRemoveDismissesOnlyMatchingID(t *testing.T) {
	c := notify.New()
	id1 := c.Info("1")
	id2 := c.Info("2")
	id3 := c.Info("3")

	c.Remove(id2)
	active := c.Active()
	require.Len(t, active, 2)
	require.Equal(t, id1, active[0].ID)
	require.Equal(t, id3, active[1].ID)

	c.Remove(9999)
	require.Len(t, c.Active(), 2)
}

func TestTickPrunesExpiredAndBumpsGeneration(t *testing.T) {
	now := time.Now()
	c := notify.NewWithClock(func() time.Time { return now })
	c.Push(notify.Success, "fleeting") // 3s TTL
	gen0 := c.Generation()

	c.Tick(now.Add(1 * time.Second))
	require.Len(t, c.Active(), 1, "not yet expired")
	require.Equal(t, gen0, c.Generation())

	c.Tick(now.Add(4 * time.Second))
	require.True(t, c.IsEmpty())
	require.Greater(t, c.Generation(), gen0)
}

func TestPersistentNotificationNeverExpires(t *testing.T) {
	now := time.Now()
	c := notify.NewWithClock(func() time.Time { return now })
	c.Add(notify.Info, "sticky", 0)
	c.Tick(now.Add(365 * 24 * time.Hour))
	require.Len(t, c.Active(), 1)
}

func TestClearLastAndClearAll(t *testing.T) {
	c := notify.New()
	c.Info("1")
	c.Info("2")
	c.ClearLast()
	require.Len(t, c.Active(), 1)
	c.ClearAll()
	require.True(t, c.IsEmpty())
}

func TestKindFromSeverityCollapsesCriticalToError(t *testing.T) {
	require.Equal(t, notify.Info, notify.KindFromSeverity(apperr.Info))
	require.Equal(t, notify.Warning, notify.KindFromSeverity(apperr.Warning))
	require.Equal(t, notify.Error, notify.KindFromSeverity(apperr.Error))
	require.Equal(t, notify.Error, notify.KindFromSeverity(apperr.Critical))
}
