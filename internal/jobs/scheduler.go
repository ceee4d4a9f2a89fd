package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"connecthub/auth/internal/repository"
)

// Scheduler runs the hourly expiry sweep. Expired rows are invisible to
// normal lookup anyway; the sweep just keeps the tables from growing.
type Scheduler struct {
	cron          *cron.Cron
	sessions      *repository.SessionRepository
	refreshTokens *repository.RefreshTokenRepository
	resets        *repository.PasswordResetRepository
	verifications *repository.EmailVerificationRepository
	log           zerolog.Logger
}

func NewScheduler(
	sessions *repository.SessionRepository,
	refreshTokens *repository.RefreshTokenRepository,
	resets *repository.PasswordResetRepository,
	verifications *repository.EmailVerificationRepository,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		sessions:      sessions,
		refreshTokens: refreshTokens,
		resets:        resets,
		verifications: verifications,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweepExpired); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for in-flight sweeps to finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	type sweep struct {
		name string
		fn   func(context.Context) (int64, error)
	}

	for _, sw := range []sweep{
		{"sessions", s.sessions.DeleteExpired},
		{"refresh_tokens", s.refreshTokens.DeleteExpired},
		{"password_resets", s.resets.DeleteExpired},
		{"email_verifications", s.verifications.DeleteExpired},
	} {
		deleted, err := sw.fn(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("table", sw.name).Msg("expiry sweep failed")
			continue
		}
		if deleted > 0 {
			s.log.Info().Str("table", sw.name).Int64("deleted", deleted).Msg("expiry sweep")
		}
	}
}
