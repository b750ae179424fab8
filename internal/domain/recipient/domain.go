package recipient

import "time"

// Preference holds the per-recipient notification toggles. A recipient
// without a stored row is treated as all-enabled.
type Preference struct {
	RecipientID   int64     `json:"recipient_id"`
	MealReminders bool      `json:"meal_reminders"`
	DietUpdates   bool      `json:"diet_updates"`
	Messages      bool      `json:"messages"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func DefaultPreference(recipientID int64) *Preference {
	return &Preference{
		RecipientID:   recipientID,
		MealReminders: true,
		DietUpdates:   true,
		Messages:      true,
	}
}
