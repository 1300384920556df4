package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevice(t *testing.T) {
	dev := NewDevice(" Living Room ", "10.0.0.5", 0)

	assert.Equal(t, "Living Room|10.0.0.5", dev.ID)
	assert.Equal(t, 8009, dev.Port)
	assert.Equal(t, "http://10.0.0.5:8009", dev.Address)
	assert.Equal(t, DeviceSummary{ID: dev.ID, Name: "Living Room", Host: "10.0.0.5"}, dev.Summary())

	v6 := NewDevice("Den", "fd00::7", 8010)
	assert.Equal(t, "http://[fd00::7]:8010", v6.Address)
}

func TestPlayerStatusMergeCarriesMissingGroups(t *testing.T) {
	prev := &PlayerStatus{
		Generation:  3,
		PlayerState: "PLAYING",
		CurrentTime: 10,
		Volume:      &Volume{Level: 0.4},
		Media:       &MediaInfo{Title: "clip.mp4", Duration: 60},
	}

	merged := prev.Merge(PlayerStatus{Generation: 3, CurrentTime: 12})
	assert.Equal(t, "PLAYING", merged.PlayerState)
	assert.InDelta(t, 12, merged.CurrentTime, 0.001)
	require.NotNil(t, merged.Volume)
	require.NotNil(t, merged.Media)
	assert.Equal(t, "clip.mp4", merged.Media.Title)

	merged.Media.Title = "changed"
	assert.Equal(t, "clip.mp4", prev.Media.Title, "merge must not alias the previous snapshot")

	replaced := prev.Merge(PlayerStatus{Generation: 3, PlayerState: "PAUSED", Volume: &Volume{Level: 1, Muted: true}})
	assert.Equal(t, "PAUSED", replaced.PlayerState)
	assert.True(t, replaced.Volume.Muted)
}

func TestPlayerStatusMergeIgnoresOtherGenerations(t *testing.T) {
	prev := &PlayerStatus{Generation: 1, PlayerState: "PLAYING", Media: &MediaInfo{Title: "old.mp4"}}

	merged := prev.Merge(PlayerStatus{Generation: 2, PlayerState: "BUFFERING"})
	assert.Nil(t, merged.Media)
	assert.Equal(t, "BUFFERING", merged.PlayerState)

	var none *PlayerStatus
	assert.Equal(t, uint64(2), none.Merge(PlayerStatus{Generation: 2}).Generation)
}

func TestErrorCodes(t *testing.T) {
	timeout := NewError(CodeTimeout, "load timed out after 20s", nil)
	wrapped := fmt.Errorf("session: %w", TransportError("load failed", timeout))

	assert.Equal(t, CodeTimeout, CodeOf(wrapped))
	assert.Equal(t, CodeTransport, CodeOf(TransportError("connect failed", errors.New("refused"))))
	assert.Equal(t, CodeValidation, CodeOf(ValidationError("unknown device")))
	assert.Equal(t, CodeDirectory, CodeOf(DirectoryError("cannot list", nil)))
	assert.Equal(t, CodeDiscovery, CodeOf(DiscoveryError("browse failed", nil)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(nil))

	inner := errors.New("refused")
	assert.ErrorIs(t, TransportError("connect failed", inner), inner)
}

func TestPublicMessage(t *testing.T) {
	assert.Empty(t, PublicMessage(nil))
	assert.Equal(t, "plain", PublicMessage(errors.New("plain")))
	assert.Equal(t, "unknown device", PublicMessage(ValidationError("unknown device")))
	assert.Equal(t, "connect failed: refused", PublicMessage(TransportError("connect failed", errors.New("refused"))))
	assert.Equal(t,
		"load failed: load timed out after 20s",
		PublicMessage(TransportError("load failed", NewError(CodeTimeout, "load timed out after 20s", nil))),
	)
}
