package ops

import (
	"context"

	"github.com/hpungsan/rutina/internal/db"
	"github.com/hpungsan/rutina/internal/errors"
	"github.com/hpungsan/rutina/internal/routine"
)

// ProfileOutput wraps the stored profile.
type ProfileOutput struct {
	Profile routine.ProfileInput `json:"profile"`
}

// GetProfile returns the saved profile.
func GetProfile(ctx context.Context, kv db.KV) (*ProfileOutput, error) {
	var p routine.ProfileInput
	found, err := readJSON(ctx, kv, keyProfile, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFound("profile", "default")
	}
	return &ProfileOutput{Profile: p}, nil
}

// SaveProfile validates and replaces the saved profile. Sensitivities are
// stored deduplicated in canonical order.
func SaveProfile(ctx context.Context, kv db.KV, p routine.ProfileInput) (*ProfileOutput, error) {
	if err := routine.ValidateProfile(p).Err(); err != nil {
		return nil, err
	}
	p.SensorySensitivity = p.Sensitivities()

	if err := writeJSON(ctx, kv, keyProfile, p); err != nil {
		return nil, err
	}
	return &ProfileOutput{Profile: p}, nil
}
