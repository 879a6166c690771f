package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dreamplanner/internal/schedule"
)

var ErrNotFound = errors.New("user not found")

var validTones = map[string]bool{
	ToneHarsh:      true,
	TonePositive:   true,
	ToneOptimistic: true,
	ToneFear:       true,
	ToneLogical:    true,
	ToneNeutral:    true,
}

type Service struct {
	DB *gorm.DB
}

type RegisterInput struct {
	Email    string
	Name     string
	Timezone string
}

type PreferenceInput struct {
	NotificationFrequency int
	SleepStart            string
	SleepEnd              string
	QuietHours            []string // "HH:MM-HH:MM"
	MotivationTone        string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("invalid email")
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}

	u := User{
		ID:       uuid.NewString(),
		Email:    in.Email,
		Name:     strings.TrimSpace(in.Name),
		Timezone: tz,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		// Defaults mirror the preference column defaults; having the row
		// up front keeps the scheduling path free of null checks.
		return tx.Create(&Preference{
			UserID:                u.ID,
			NotificationFrequency: 60,
			SleepStart:            "23:00",
			SleepEnd:              "07:00",
			QuietHours:            pq.StringArray{},
			MotivationTone:        ToneNeutral,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertPreferences is the validation boundary for scheduling preferences.
// Bad values are rejected here and never reach the calculator.
func (s *Service) UpsertPreferences(ctx context.Context, userID string, in PreferenceInput) (*Preference, error) {
	if in.NotificationFrequency < 1 {
		return nil, fmt.Errorf("notification frequency must be at least 1 minute")
	}
	if _, err := schedule.ParseClock(in.SleepStart); err != nil {
		return nil, fmt.Errorf("sleep start: %w", err)
	}
	if _, err := schedule.ParseClock(in.SleepEnd); err != nil {
		return nil, fmt.Errorf("sleep end: %w", err)
	}
	for _, q := range in.QuietHours {
		if _, _, err := parseQuietRange(q); err != nil {
			return nil, err
		}
	}
	tone := strings.ToUpper(strings.TrimSpace(in.MotivationTone))
	if tone == "" {
		tone = ToneNeutral
	}
	if !validTones[tone] {
		return nil, fmt.Errorf("unknown motivation tone %q", in.MotivationTone)
	}

	quiet := pq.StringArray(in.QuietHours)
	if quiet == nil {
		quiet = pq.StringArray{}
	}
	pref := Preference{
		UserID:                userID,
		NotificationFrequency: in.NotificationFrequency,
		SleepStart:            in.SleepStart,
		SleepEnd:              in.SleepEnd,
		QuietHours:            quiet,
		MotivationTone:        tone,
		UpdatedAt:             time.Now(),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&pref).Error
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (s *Service) Find(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Profile loads the user's scheduling profile for the calculator.
func Profile(ctx context.Context, db *gorm.DB, userID string) (schedule.Profile, error) {
	var u User
	if err := db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return schedule.Profile{}, ErrNotFound
		}
		return schedule.Profile{}, err
	}
	var pref Preference
	if err := db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return schedule.Profile{}, ErrNotFound
		}
		return schedule.Profile{}, err
	}

	p := schedule.Profile{
		Timezone:   u.Timezone,
		SleepStart: pref.SleepStart,
		SleepEnd:   pref.SleepEnd,
		Frequency:  time.Duration(pref.NotificationFrequency) * time.Minute,
	}
	for _, q := range pref.QuietHours {
		start, end, err := parseQuietRange(q)
		if err != nil {
			continue // validated on write; skip rather than fail the chain
		}
		p.QuietHours = append(p.QuietHours, schedule.Window{Start: start, End: end})
	}
	return p, nil
}

func parseQuietRange(s string) (start, end string, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("quiet range %q must be HH:MM-HH:MM", s)
	}
	startMins, err := schedule.ParseClock(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("quiet range %q: %w", s, err)
	}
	endMins, err := schedule.ParseClock(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("quiet range %q: %w", s, err)
	}
	if startMins >= endMins {
		return "", "", fmt.Errorf("quiet range %q must start before it ends", s)
	}
	return parts[0], parts[1], nil
}
