package plan

import "time"

// Meal is one scheduled eating occasion inside a diet plan. TimeOfDay is
// "HH:MM" in the business timezone; empty when the dietitian left it
// unscheduled.
type Meal struct {
	ID        int64    `json:"id"`
	DietID    int64    `json:"diet_id"`
	Name      string   `json:"name"`
	TimeOfDay string   `json:"time_of_day"`
	MenuItems []string `json:"menu_items"`
}

// DietPlan is a read-only snapshot of a diet authored for one client.
type DietPlan struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	RecipientID int64     `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
	Meals       []Meal    `json:"meals"`
}

// Client is a read-only snapshot of a dietitian's client.
type Client struct {
	ID          int64      `json:"id"`
	RecipientID int64      `json:"recipient_id"`
	DietitianID int64      `json:"dietitian_id"`
	Name        string     `json:"name"`
	BirthDate   *time.Time `json:"birth_date"`
}
