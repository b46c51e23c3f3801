// Package persistent implements the profile store with direct table
// operations against postgres. This is the authoritative integration mode
// for profile resolution: equality-filtered selects with at-most-one-row
// semantics, and inserts whose uniqueness conflicts signal a concurrent
// creation.
package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventive/eventive"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Profile struct {
	bun.BaseModel `bun:"table:profile"`

	Id          string                 `bun:",pk"`
	Username    string                 `bun:",unique,nullzero"`
	DisplayName string                 `bun:",nullzero"`
	Bio         string                 `bun:",nullzero"`
	AvatarUrl   string                 `bun:",nullzero"`
	Role        string                 `bun:",notnull,default:'user'"`
	Settings    map[string]interface{} `bun:",type:jsonb,nullzero"`
	CreatedAt   time.Time              `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time              `bun:",nullzero,notnull,default:current_timestamp"`
}

func (p Profile) ToDomain() eventive.Profile {
	return eventive.Profile{
		Id:          eventive.UserId(p.Id),
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarUrl:   p.AvatarUrl,
		Role:        eventive.Role(p.Role),
		Settings:    eventive.Settings(p.Settings),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromDomain(p eventive.Profile) *Profile {
	role := string(p.Role)
	if role == "" {
		role = string(eventive.RoleUser)
	}
	return &Profile{
		Id:          string(p.Id),
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		AvatarUrl:   p.AvatarUrl,
		Role:        role,
		Settings:    p.Settings,
	}
}

type ProfileStore struct {
	DB *bun.DB
}

var _ eventive.ProfileStore = (*ProfileStore)(nil)
var _ eventive.SettingsStore = (*ProfileStore)(nil)

func (s *ProfileStore) ByUserId(ctx context.Context, userId eventive.UserId) (eventive.Profile, error) {
	profile := new(Profile)
	err := s.DB.NewSelect().
		Model(profile).
		Where(`id=?`, string(userId)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eventive.Profile{}, eventive.ErrProfileNotFound
		}
		return eventive.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile.ToDomain(), nil
}

func (s *ProfileStore) Create(ctx context.Context, profile eventive.Profile) (eventive.Profile, error) {
	model := fromDomain(profile)
	_, err := s.DB.NewInsert().
		Model(model).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return eventive.Profile{}, eventive.ErrProfileExists
		}
		return eventive.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return model.ToDomain(), nil
}

func (s *ProfileStore) Update(ctx context.Context, userId eventive.UserId, patch eventive.ProfilePatch) (eventive.Profile, error) {
	current, err := s.ByUserId(ctx, userId)
	if err != nil {
		return eventive.Profile{}, err
	}
	if patch.Username != nil && current.Username != "" && *patch.Username != current.Username {
		return eventive.Profile{}, eventive.ErrUsernameImmutable
	}

	model := new(Profile)
	query := s.DB.NewUpdate().
		Model(model).
		Set(`updated_at=current_timestamp`).
		Where(`id=?`, string(userId)).
		Returning("*")
	if patch.Username != nil {
		query.Set(`username=?`, *patch.Username)
	}
	if patch.DisplayName != nil {
		query.Set(`display_name=?`, *patch.DisplayName)
	}
	if patch.Bio != nil {
		query.Set(`bio=?`, *patch.Bio)
	}
	if patch.AvatarUrl != nil {
		query.Set(`avatar_url=?`, *patch.AvatarUrl)
	}

	_, err = query.Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			// username uniqueness is global, not per user
			return eventive.Profile{}, eventive.ErrProfileExists
		}
		return eventive.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return model.ToDomain(), nil
}

func (s *ProfileStore) Settings(ctx context.Context, userId eventive.UserId) (eventive.Settings, error) {
	profile, err := s.ByUserId(ctx, userId)
	if err != nil {
		return nil, err
	}
	if profile.Settings == nil {
		return eventive.Settings{}, nil
	}
	return profile.Settings, nil
}

func (s *ProfileStore) UpdateSettings(ctx context.Context, userId eventive.UserId, settings eventive.Settings) (eventive.Settings, error) {
	model := new(Profile)
	result, err := s.DB.NewUpdate().
		Model(model).
		Set(`settings=?`, map[string]interface{}(settings)).
		Set(`updated_at=current_timestamp`).
		Where(`id=?`, string(userId)).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return nil, eventive.ErrProfileNotFound
	}
	return eventive.Settings(model.Settings), nil
}

func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}
