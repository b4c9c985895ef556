package notifier

import (
	"log"

	"wasteroute-backend/internal/services"
	"wasteroute-backend/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// Notifier fans engine events out to connected dashboards and driver
// devices. FCM is optional; without credentials only the hub is used.
type Notifier struct {
	hub *websocket.Hub
	fcm *services.FCMService
	db  *sqlx.DB
}

func New(hub *websocket.Hub, fcm *services.FCMService, db *sqlx.DB) *Notifier {
	return &Notifier{hub: hub, fcm: fcm, db: db}
}

// Register subscribes the notifier to the event bus
func (n *Notifier) Register(events *services.EventBus) {
	events.Subscribe(services.EventBinEligible, n.onBinEligible)
	events.Subscribe(services.EventRouteAssigned, n.onRouteAssigned)
	events.Subscribe(services.EventRouteCompleted, n.onRouteCompleted)
	events.Subscribe(services.EventRouteCancelled, n.onRouteCancelled)
}

func (n *Notifier) onBinEligible(evt services.Event) {
	if evt.Bin == nil {
		return
	}
	n.hub.BroadcastToRole("manager", map[string]interface{}{
		"type": "bin_eligible",
		"data": evt.Bin.ToBinResponse(),
	})
}

func (n *Notifier) onRouteAssigned(evt services.Event) {
	if evt.Route == nil {
		return
	}
	n.hub.BroadcastToRole("manager", map[string]interface{}{
		"type": "route_assigned",
		"data": evt.Route,
	})

	if evt.Route.DriverID == nil {
		return
	}
	driverID := *evt.Route.DriverID

	n.hub.BroadcastToUser(driverID, map[string]interface{}{
		"type": "route_assigned",
		"data": evt.Route,
	})

	if n.fcm == nil {
		return
	}
	for _, token := range n.tokensFor(driverID) {
		if err := n.fcm.SendRouteAssignedNotification(token, evt.Route.ID, len(evt.Route.Stops)); err != nil {
			log.Printf("⚠️  [NOTIFIER] FCM send failed for driver %s: %v", driverID, err)
		}
	}
}

func (n *Notifier) onRouteCompleted(evt services.Event) {
	if evt.Route == nil {
		return
	}
	n.hub.BroadcastToRole("manager", map[string]interface{}{
		"type": "route_completed",
		"data": evt.Route,
	})
}

func (n *Notifier) onRouteCancelled(evt services.Event) {
	if evt.Route == nil {
		return
	}
	n.hub.BroadcastToRole("manager", map[string]interface{}{
		"type": "route_cancelled",
		"data": evt.Route,
	})

	if evt.Route.DriverID == nil {
		return
	}
	driverID := *evt.Route.DriverID

	n.hub.BroadcastToUser(driverID, map[string]interface{}{
		"type": "route_cancelled",
		"data": evt.Route,
	})

	if n.fcm == nil {
		return
	}
	for _, token := range n.tokensFor(driverID) {
		if err := n.fcm.SendRouteCancelledNotification(token, evt.Route.ID); err != nil {
			log.Printf("⚠️  [NOTIFIER] FCM send failed for driver %s: %v", driverID, err)
		}
	}
}

func (n *Notifier) tokensFor(userID string) []string {
	var tokens []string
	if err := n.db.Select(&tokens, `SELECT token FROM fcm_tokens WHERE user_id = $1`, userID); err != nil {
		log.Printf("⚠️  [NOTIFIER] Failed to load FCM tokens for %s: %v", userID, err)
		return nil
	}
	return tokens
}
