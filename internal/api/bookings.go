package api

import (
	"context"
	"fmt"
	"net/http"

	"goride/internal/models"
)

type bookingHistoryResponse struct {
	Bookings []models.Booking `json:"bookings"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

func (c *Client) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	var booking models.Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", req, &booking); err != nil {
		return nil, fmt.Errorf("booking creation failed: %w", err)
	}

	c.log.WithRideID(booking.ID).Info("Booking created")
	return &booking, nil
}

func (c *Client) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	if err := c.do(ctx, http.MethodGet, "/bookings/"+bookingID, nil, &booking); err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", bookingID, err)
	}
	return &booking, nil
}

func (c *Client) BookingHistory(ctx context.Context, page, limit int) ([]models.Booking, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var resp bookingHistoryResponse
	path := fmt.Sprintf("/bookings/history?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch booking history: %w", err)
	}

	return resp.Bookings, resp.Total, nil
}
