package dto

import "github.com/spec-kit/ticket-bot/internal/domain"

// SettingsResponse is the configuration document plus the id counter.
type SettingsResponse struct {
	domain.Settings
	TicketCounter int `json:"ticket_counter"`
}

// PruneResponse reports removed ticket records.
type PruneResponse struct {
	Removed int `json:"removed"`
}
