package reqloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvfsclient/pvfsclient/internal/device"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

func TestRemountCoordinatorBlocksHelperUntilGateReleased(t *testing.T) {
	c := newRemountCoordinator()
	stub := device.NewStub()

	started := make(chan struct{})
	go func() {
		close(started)
		c.run(context.Background(), stub)
	}()
	<-started

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, remountNotCompleted, c.State())

	c.releaseGate()

	require.Eventually(t, func() bool {
		return c.State() == remountCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestRemountCoordinatorRecordsFailure(t *testing.T) {
	c := newRemountCoordinator()
	stub := device.NewStub()
	stub.RemountErr = errors.New("ioctl failed")

	go c.run(context.Background(), stub)
	c.releaseGate()

	require.Eventually(t, func() bool {
		return c.State() == remountFailed
	}, time.Second, 5*time.Millisecond)
}

func TestAdmitsDuringMount(t *testing.T) {
	assert.True(t, admitsDuringMount(uapi.KindMount))
	assert.True(t, admitsDuringMount(uapi.KindCancel))
	assert.True(t, admitsDuringMount(uapi.KindFeatures))
	assert.False(t, admitsDuringMount(uapi.KindGetattr))
	assert.False(t, admitsDuringMount(uapi.KindFileIO))
}
