package immediateticker_test

import (
	"testing"
	"time"

	immediateticker "avatarcast/pkg/immediate_ticker"

	"github.com/stretchr/testify/require"
)

func TestFiresImmediately(t *testing.T) {
	it := immediateticker.New(time.Hour)
	defer it.Stop()

	select {
	case <-it.C:
	case <-time.After(time.Second):
		t.Fatal("no immediate tick")
	}
}

func TestTicksAfterInterval(t *testing.T) {
	it := immediateticker.New(10 * time.Millisecond)
	defer it.Stop()

	<-it.C

	select {
	case <-it.C:
	case <-time.After(time.Second):
		t.Fatal("no tick after interval")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	it := immediateticker.New(time.Millisecond)

	require.NotPanics(t, func() {
		it.Stop()
		it.Stop()
	})
}
