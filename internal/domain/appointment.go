package domain

// Appointment is a persisted, confirmed appointment record.
type Appointment struct {
	ID            string   `json:"-"`
	ClientName    string   `json:"client_name"`
	Description   string   `json:"description"`
	StartDateTime string   `json:"start_datetime"`
	EndDateTime   string   `json:"end_datetime"`
	Location      string   `json:"location"`
	Team          []string `json:"team"`
}
