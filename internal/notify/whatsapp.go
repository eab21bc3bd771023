// Package notify holds the collaborators the core hands off to once a
// booking exists: the WhatsApp contact gateway and the optional websocket
// push layer. Neither formats user-facing messages; the core only supplies
// trip fields.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/kigali-rides/internal/models"
)

type HandoffResult struct {
	Success     bool   `json:"success"`
	ExternalRef string `json:"external_ref"`
}

// Gateway is the external messaging collaborator. The core calls Handoff at
// most once per booking to have a WhatsApp deep-link or message prepared.
type Gateway interface {
	Handoff(ctx context.Context, b *models.Booking, passenger, driver *models.Trip) (HandoffResult, error)
}

// HTTPGateway posts the handoff payload to the messaging service. Calls are
// bounded by the client timeout; a slow gateway must not hold up booking
// state transitions.
type HTTPGateway struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewHTTPGateway(endpoint, token string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{Endpoint: endpoint, Token: token, Client: &http.Client{Timeout: timeout}}
}

type handoffPayload struct {
	BookingID string      `json:"booking_id"`
	Passenger handoffTrip `json:"passenger"`
	Driver    handoffTrip `json:"driver"`
}

type handoffTrip struct {
	OwnerID       string       `json:"owner_id"`
	Origin        models.Place `json:"origin"`
	Destination   models.Place `json:"destination"`
	ScheduledTime time.Time    `json:"scheduled_time"`
}

func (g *HTTPGateway) Handoff(ctx context.Context, b *models.Booking, passenger, driver *models.Trip) (HandoffResult, error) {
	payload := handoffPayload{
		BookingID: b.ID,
		Passenger: handoffTrip{OwnerID: passenger.OwnerID, Origin: passenger.Origin, Destination: passenger.Destination, ScheduledTime: passenger.ScheduledTime},
		Driver:    handoffTrip{OwnerID: driver.OwnerID, Origin: driver.Origin, Destination: driver.Destination, ScheduledTime: driver.ScheduledTime},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return HandoffResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return HandoffResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return HandoffResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HandoffResult{}, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	var out HandoffResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return HandoffResult{}, err
	}
	return out, nil
}
