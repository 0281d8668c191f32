// Package cleanup owns time-to-live semantics for ephemeral content:
// expired stories, sold listings past their retention window, shared
// locations, and shoutouts. A single ticker sweeps all four kinds.
package cleanup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/metrics"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/Abdullah-z/instaBook-Server/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entity kinds, used for logging and metrics labels
const (
	kindStory       = "story"
	kindSoldListing = "sold_listing"
	kindLocation    = "shared_location"
	kindShoutout    = "shoutout"
)

// Service handles periodic cleanup of expired content
type Service struct {
	db       *gorm.DB
	media    storage.MediaStore // nil disables media deletion
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService creates a cleanup service
func NewService(db *gorm.DB, media storage.MediaStore, interval time.Duration) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		db:       db,
		media:    media,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the periodic cleanup process
func (s *Service) Start() {
	logger.Log.Info("Starting cleanup service", zap.Duration("interval", s.interval))
	go s.run()
}

// Stop stops the cleanup service
func (s *Service) Stop() {
	logger.Log.Info("Stopping cleanup service")
	s.cancel()
}

func (s *Service) run() {
	// Run immediately on startup, then on interval.
	s.Sweep(s.ctx, time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(s.ctx, time.Now().UTC())
		case <-s.ctx.Done():
			return
		}
	}
}

// Sweep runs one cleanup pass over every entity kind. Each kind is handled
// independently: a failure in one pass is logged and never aborts the others.
// Sweeping already-cleaned data is a no-op, so the scheduler can re-run it
// at any time.
func (s *Service) Sweep(ctx context.Context, now time.Time) {
	passes := []struct {
		kind string
		fn   func(context.Context, time.Time) error
	}{
		{kindStory, s.sweepStories},
		{kindSoldListing, s.sweepSoldListings},
		{kindLocation, s.sweepSharedLocations},
		{kindShoutout, s.sweepShoutouts},
	}

	for _, pass := range passes {
		start := time.Now()
		if err := pass.fn(ctx, now); err != nil {
			logger.Log.Error("Sweep pass failed",
				zap.String("kind", pass.kind),
				zap.Error(err),
			)
		}
		if m := metrics.Get(); m != nil {
			m.SweepDuration.WithLabelValues(pass.kind).Observe(time.Since(start).Seconds())
		}
	}
}

// sweepStories deletes expired stories together with their media
func (s *Service) sweepStories(ctx context.Context, now time.Time) error {
	var expired []models.Story
	if err := s.db.WithContext(ctx).Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
		return fmt.Errorf("failed to query expired stories: %w", err)
	}

	if len(expired) == 0 {
		return nil
	}

	logger.Log.Info("Cleaning up expired stories", zap.Int("count", len(expired)))

	for i := range expired {
		story := &expired[i]

		s.deleteMedia(ctx, kindStory, story.Images)

		if err := s.db.WithContext(ctx).Delete(&models.Story{}, "id = ?", story.ID).Error; err != nil {
			s.recordError(kindStory)
			logger.Log.Error("Failed to delete expired story",
				zap.String("story_id", story.ID),
				zap.Error(err),
			)
			continue
		}

		s.recordCleaned(kindStory)
	}

	return nil
}

// sweepSoldListings tombstones listings whose post-sale retention window
// has elapsed: media is purged and cleared, the record is kept for history.
func (s *Service) sweepSoldListings(ctx context.Context, now time.Time) error {
	var expired []models.Listing
	err := s.db.WithContext(ctx).
		Where("delete_at IS NOT NULL AND delete_at <= ?", now).
		Find(&expired).Error
	if err != nil {
		return fmt.Errorf("failed to query sold listings past retention: %w", err)
	}

	if len(expired) == 0 {
		return nil
	}

	logger.Log.Info("Purging media for sold listings", zap.Int("count", len(expired)))

	for i := range expired {
		listing := &expired[i]

		s.deleteMedia(ctx, kindSoldListing, listing.Images)

		// Clearing delete_at is what makes the sweep idempotent: the
		// tombstoned record no longer matches the work-set predicate.
		res := s.db.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ? AND delete_at IS NOT NULL", listing.ID).
			Updates(map[string]interface{}{
				"images":    models.StringArray{},
				"delete_at": nil,
			})
		if res.Error != nil {
			s.recordError(kindSoldListing)
			logger.Log.Error("Failed to tombstone sold listing",
				logger.WithListingID(listing.ID),
				zap.Error(res.Error),
			)
			continue
		}

		if res.RowsAffected > 0 {
			s.recordCleaned(kindSoldListing)
		}
	}

	return nil
}

// sweepSharedLocations drops expired location shares. No media involved.
func (s *Service) sweepSharedLocations(ctx context.Context, now time.Time) error {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.SharedLocation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete expired shared locations: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		logger.Log.Info("Deleted expired shared locations", zap.Int64("count", res.RowsAffected))
		for i := int64(0); i < res.RowsAffected; i++ {
			s.recordCleaned(kindLocation)
		}
	}

	return nil
}

// sweepShoutouts drops expired shoutouts. No media involved.
func (s *Service) sweepShoutouts(ctx context.Context, now time.Time) error {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.Shoutout{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete expired shoutouts: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		logger.Log.Info("Deleted expired shoutouts", zap.Int64("count", res.RowsAffected))
		for i := int64(0); i < res.RowsAffected; i++ {
			s.recordCleaned(kindShoutout)
		}
	}

	return nil
}

// deleteMedia removes every referenced media item, continuing past
// individual failures. References are either stable keys or, on legacy
// records, bare URLs the store derives a key from.
func (s *Service) deleteMedia(ctx context.Context, kind string, refs models.StringArray) {
	if s.media == nil {
		return
	}

	for _, ref := range refs {
		if ref == "" {
			continue
		}

		var err error
		if strings.Contains(ref, "://") {
			err = s.media.DeleteFileByURL(ctx, ref)
		} else {
			err = s.media.DeleteFile(ctx, ref)
		}

		if m := metrics.Get(); m != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.MediaDeletesTotal.WithLabelValues(status).Inc()
		}

		if err != nil {
			logger.Log.Warn("Failed to delete media item",
				zap.String("kind", kind),
				zap.String("ref", ref),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) recordCleaned(kind string) {
	if m := metrics.Get(); m != nil {
		m.SweepCleanedTotal.WithLabelValues(kind).Inc()
	}
}

func (s *Service) recordError(kind string) {
	if m := metrics.Get(); m != nil {
		m.SweepErrorsTotal.WithLabelValues(kind).Inc()
	}
}
