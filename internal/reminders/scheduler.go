// Package reminders mails users a digest of their contacts' upcoming birthdays.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/contacts-be/internal/mail"
	"github.com/isdelr/contacts-be/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// UserLister returns the users that should receive reminders.
type UserLister interface {
	ListConfirmed(ctx context.Context) ([]models.User, error)
}

// BirthdayFinder returns a user's contacts with a birthday in the coming week.
type BirthdayFinder interface {
	Birthdays(ctx context.Context, userID uint, today time.Time) ([]models.Contact, error)
}

// Scheduler runs the birthday digest on a cron schedule.
type Scheduler struct {
	users    UserLister
	contacts BirthdayFinder
	mailer   mail.Sender
	schedule cron.Schedule
	now      func() time.Time
	interval time.Duration
	nextRun  time.Time
	ticker   *time.Ticker
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan bool
}

// NewScheduler creates a new scheduler for a standard five-field cron expression.
func NewScheduler(users UserLister, contacts BirthdayFinder, mailer mail.Sender, expr string) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", expr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		users:    users,
		contacts: contacts,
		mailer:   mailer,
		schedule: schedule,
		now:      time.Now,
		interval: time.Minute,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan bool),
	}
	s.nextRun = schedule.Next(s.now())
	return s, nil
}

// NextRun reports when the digest is due next.
func (s *Scheduler) NextRun() time.Time {
	return s.nextRun
}

// Run starts the scheduler's ticking loop.
func (s *Scheduler) Run() {
	log.Info().Time("next_run", s.nextRun).Msg("Starting birthday reminder scheduler")
	s.ticker = time.NewTicker(s.interval)
	defer s.ticker.Stop()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping birthday reminder scheduler")
			return
		case <-s.ticker.C:
			s.tick()
		}
	}
}

// Stop halts the scheduler, aborting a digest run in progress.
func (s *Scheduler) Stop() {
	s.cancel()
	s.done <- true
}

func (s *Scheduler) tick() {
	now := s.now()
	if now.Before(s.nextRun) {
		return
	}
	s.nextRun = s.schedule.Next(now)

	sent, err := s.RunOnce(s.ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Birthday reminder run failed")
		return
	}
	log.Info().Int("sent", sent).Time("next_run", s.nextRun).Msg("Birthday reminders sent")
}

// RunOnce mails every confirmed user with upcoming birthdays and returns how many
// digests were sent. A failure for one user does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context, today time.Time) (int, error) {
	users, err := s.users.ListConfirmed(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	sent := 0
	for _, user := range users {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		contacts, err := s.contacts.Birthdays(ctx, user.ID, today)
		if err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to load upcoming birthdays")
			continue
		}
		if len(contacts) == 0 {
			continue
		}

		msg, err := mail.BirthdayDigestMessage(user.Email, user.Username, contacts)
		if err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to render birthday digest")
			continue
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			log.Error().Err(err).Str("email", user.Email).Msg("Failed to send birthday digest")
			continue
		}
		sent++
	}
	return sent, nil
}
