package models

// Counterparty is the other side of an active ride: the driver when the
// client runs as a rider, the rider when it runs as a driver.
type Counterparty struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	AvatarURL     string  `json:"avatar_url"`
	ContactNumber string  `json:"contact_number"`
	Rating        float64 `json:"rating"`
}
