package api

import (
	"context"
	"fmt"
	"net/http"
)

type PendingDriver struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Documents []Document `json:"documents"`
}

type reviewRequest struct {
	Action string `json:"action"` // approve, reject
	Note   string `json:"note,omitempty"`
}

// PendingDrivers lists drivers awaiting document verification. Admin
// role only; the backend enforces authorization.
func (c *Client) PendingDrivers(ctx context.Context) ([]PendingDriver, error) {
	var drivers []PendingDriver
	if err := c.do(ctx, http.MethodGet, "/admin/drivers/pending", nil, &drivers); err != nil {
		return nil, fmt.Errorf("failed to fetch pending drivers: %w", err)
	}
	return drivers, nil
}

// ReviewDriverDocument approves or rejects one verification document.
func (c *Client) ReviewDriverDocument(ctx context.Context, driverID, documentID string, approve bool, note string) error {
	action := "reject"
	if approve {
		action = "approve"
	}

	path := fmt.Sprintf("/admin/drivers/%s/documents/%s/review", driverID, documentID)
	if err := c.do(ctx, http.MethodPost, path, reviewRequest{Action: action, Note: note}, nil); err != nil {
		return fmt.Errorf("document review failed: %w", err)
	}

	c.log.WithFields(map[string]interface{}{
		"driver_id":   driverID,
		"document_id": documentID,
		"action":      action,
	}).Info("Driver document reviewed")
	return nil
}
