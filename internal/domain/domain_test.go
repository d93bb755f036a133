package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSameContentIgnoresSyncStamp(t *testing.T) {
	start := time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC)
	a := Activity{ID: 1, Name: "Ride", StartDate: start, StartLatLng: &LatLng{Lat: 1, Lng: 2}, SyncedAt: start}
	b := a
	b.StartLatLng = &LatLng{Lat: 1, Lng: 2}
	b.StartDate = start.In(time.FixedZone("CET", 3600))
	b.SyncedAt = start.Add(time.Hour)

	require.True(t, a.SameContent(b))

	b.Name = "Ride 2"
	require.False(t, a.SameContent(b))
}

func TestSameContentDistinguishesMissingCoordinates(t *testing.T) {
	a := Activity{ID: 1, StartLatLng: &LatLng{}}
	b := Activity{ID: 1}

	require.False(t, a.SameContent(b))
}

func TestCredentialExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	require.False(t, Credential{ExpiresAt: now.Unix() + 1}.Expired(now))
	require.True(t, Credential{ExpiresAt: now.Unix()}.Expired(now))
	require.True(t, Credential{ExpiresAt: now.Unix() - 60}.Expired(now))
}

func TestProviderErrorUnwraps(t *testing.T) {
	err := &ProviderError{Op: "list activities", StatusCode: 503, Body: "unavailable"}

	require.ErrorIs(t, err, ErrProviderRequestFailed)
	require.Contains(t, err.Error(), "503")
}
