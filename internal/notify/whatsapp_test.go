package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/kigali-rides/internal/models"
)

func fixtureBooking() (*models.Booking, *models.Trip, *models.Trip) {
	b := &models.Booking{ID: "b1", PassengerTripID: "p1", DriverTripID: "d1", Status: models.BookingWhatsAppLaunched}
	p := &models.Trip{
		ID: "p1", OwnerID: "alice", Role: models.RolePassenger,
		Origin:        models.Place{Lat: -1.95, Lng: 30.06, Address: "CBD"},
		Destination:   models.Place{Lat: -1.97, Lng: 30.10, Address: "Airport"},
		ScheduledTime: time.Now().Add(time.Hour),
	}
	d := &models.Trip{
		ID: "d1", OwnerID: "bosco", Role: models.RoleDriver,
		Origin:        models.Place{Lat: -1.955, Lng: 30.063, Address: "Nyamirambo"},
		Destination:   models.Place{Lat: -1.97, Lng: 30.10, Address: "Airport"},
		ScheduledTime: time.Now().Add(time.Hour),
	}
	return b, p, d
}

func TestHTTPGatewayHandoff(t *testing.T) {
	var got handoffPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(HandoffResult{Success: true, ExternalRef: "wa-99"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "secret", time.Second)
	b, p, d := fixtureBooking()
	res, err := g.Handoff(context.Background(), b, p, d)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "wa-99", res.ExternalRef)
	assert.Equal(t, "b1", got.BookingID)
	assert.Equal(t, "alice", got.Passenger.OwnerID)
	assert.Equal(t, "bosco", got.Driver.OwnerID)
}

func TestHTTPGatewayNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", time.Second)
	b, p, d := fixtureBooking()
	_, err := g.Handoff(context.Background(), b, p, d)
	assert.ErrorContains(t, err, "429")
}

func TestHTTPGatewayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must be consumed before blocking or the server never
		// notices the client disconnect.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", time.Second)
	b, p, d := fixtureBooking()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Handoff(ctx, b, p, d)
	assert.Error(t, err)
}
