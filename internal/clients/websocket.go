package clients

import (
	"context"
	"time"

	"loan-engine/internal/domain"
	ws "loan-engine/internal/transport/websocket"
)

const applicationsChannel = "loan_applications"

type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

func (c *WebSocketClient) NotifyApplicationSubmitted(ctx context.Context, app domain.LoanApplication) error {
	if c == nil || c.hub == nil {
		return nil
	}

	c.hub.Broadcast(&ws.Message{
		Type:    "application_submitted",
		Channel: applicationsChannel,
		Data: map[string]interface{}{
			"application_id": app.ID,
			"amount":         app.Amount.StringFixed(2),
			"duration":       app.Duration,
			"status":         string(app.Status),
			"created_at":     app.CreatedAt.Format(time.RFC3339),
		},
	})
	return nil
}

func (c *WebSocketClient) NotifyApplicationApproved(ctx context.Context, app domain.LoanApplication) error {
	if c == nil || c.hub == nil {
		return nil
	}

	data := map[string]interface{}{
		"application_id":  app.ID,
		"status":          string(app.Status),
		"monthly_payment": app.MonthlyPayment.StringFixed(2),
	}
	if app.ApprovedAt != nil {
		data["approved_at"] = app.ApprovedAt.Format(time.RFC3339)
	}

	c.hub.Broadcast(&ws.Message{
		Type:    "application_approved",
		Channel: applicationsChannel,
		Data:    data,
	})
	return nil
}
