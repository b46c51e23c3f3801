package eventive

import "context"

// Settings is the open key-value bag attached to every profile.
type Settings map[string]interface{}

func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	clone := make(Settings, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

type SettingsStore interface {
	Settings(ctx context.Context, userId UserId) (Settings, error)

	// UpdateSettings replaces the stored settings and returns them.
	UpdateSettings(ctx context.Context, userId UserId, settings Settings) (Settings, error)
}
