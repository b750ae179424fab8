package recipient

import "context"

type PreferenceRepo interface {
	// Get returns ErrNotFound (repository sentinel) when the recipient has
	// never touched their toggles.
	Get(ctx context.Context, recipientID int64) (*Preference, error)
	Upsert(ctx context.Context, p *Preference) error
}
