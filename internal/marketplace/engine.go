// Package marketplace owns the bidding state machine for listings: bid
// intake on the request path and timed auction settlement in the background.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Abdullah-z/instaBook-Server/internal/logger"
	"github.com/Abdullah-z/instaBook-Server/internal/metrics"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
	"github.com/Abdullah-z/instaBook-Server/internal/push"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Bid rejection reasons, checked in order. Each maps to a distinct
// user-facing message.
var (
	ErrInvalidAmount   = errors.New("bid amount must be a positive number")
	ErrListingNotFound = errors.New("listing does not exist")
	ErrListingSold     = errors.New("listing is already sold")
	ErrNotBiddable     = errors.New("listing does not accept bids")
	ErrBiddingClosed   = errors.New("bidding has closed for this listing")
	ErrBidTooLow       = errors.New("bid must exceed the current bid")
	ErrBidAboveAsking  = errors.New("bid cannot exceed the asking price")
)

// ErrAuctionSettled rejects manual sale-state changes on a listing whose
// auction has already reached a terminal state.
var ErrAuctionSettled = errors.New("auction already settled")

// Outcome tags an accepted bid
type Outcome string

const (
	// OutcomeBid means the bid was recorded and the auction stays open
	OutcomeBid Outcome = "bid"
	// OutcomeSoldByBid means the bid hit the asking price and bought the item
	OutcomeSoldByBid Outcome = "sold_by_bid"
)

// Settlement results
const (
	resultSoldByTimeout = "sold_by_timeout"
	resultClosedUnsold  = "closed_unsold"
)

// maxBidAttempts bounds the compare-and-swap retry loop under contention.
// Every retry re-checks all preconditions, so a genuinely losing bidder
// exits with ErrBidTooLow rather than spinning.
const maxBidAttempts = 5

// Realtime event names handed to the EventPublisher. The websocket layer
// reuses these as its message types so both sides agree on the wire names.
const (
	EventBidPlaced    = "bid_placed"
	EventOutbid       = "outbid"
	EventAuctionWon   = "auction_won"
	EventAuctionEnded = "auction_ended"
)

// EventPublisher pushes realtime events to connected users. Optional;
// nil disables realtime fan-out.
type EventPublisher interface {
	PublishToUser(userID, event string, payload interface{})
}

// Engine is the auction engine. All mutations of a listing's sale and
// auction state go through it; handlers only originate transitions.
type Engine struct {
	db        *gorm.DB
	notifier  push.Notifier
	events    EventPublisher
	retention time.Duration
}

// NewEngine creates an auction engine. retention is how long sold-listing
// media is kept before the cleanup engine purges it.
func NewEngine(db *gorm.DB, notifier push.Notifier, retention time.Duration) *Engine {
	return &Engine{
		db:        db,
		notifier:  notifier,
		retention: retention,
	}
}

// Retention is how long sold-listing media survives before the sweep
func (e *Engine) Retention() time.Duration {
	return e.retention
}

// SetEventPublisher enables realtime bid/auction events
func (e *Engine) SetEventPublisher(p EventPublisher) {
	e.events = p
}

// PlaceBid validates and commits one bid. The state transition is a single
// conditional UPDATE guarded on the observed current_bid, so two concurrent
// bidders can never both win the same transition: the loser re-reads and
// fails the "must exceed current bid" check.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidderID string, amount float64) (*models.Listing, Outcome, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, "", e.reject(ErrInvalidAmount)
	}

	for attempt := 0; attempt < maxBidAttempts; attempt++ {
		var listing models.Listing
		if err := e.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", e.reject(ErrListingNotFound)
			}
			return nil, "", fmt.Errorf("failed to load listing: %w", err)
		}

		now := time.Now().UTC()

		switch {
		case listing.IsSold:
			return nil, "", e.reject(ErrListingSold)
		case !listing.Biddable():
			return nil, "", e.reject(ErrNotBiddable)
		case listing.AuctionCompleted:
			// Closed unsold by the settler; no further bids.
			return nil, "", e.reject(ErrBiddingClosed)
		case listing.BidEndTime != nil && !now.Before(*listing.BidEndTime):
			return nil, "", e.reject(ErrBiddingClosed)
		case amount <= listing.CurrentBid:
			return nil, "", e.reject(ErrBidTooLow)
		case amount > listing.Price:
			return nil, "", e.reject(ErrBidAboveAsking)
		}

		updates := map[string]interface{}{
			"current_bid":       amount,
			"highest_bidder_id": bidderID,
		}

		outcome := OutcomeBid
		if amount == listing.Price {
			// Instant buy: the bid hit the asking price.
			deleteAt := now.Add(e.retention)
			updates["is_sold"] = true
			updates["sold_at"] = now
			updates["delete_at"] = deleteAt
			updates["auction_completed"] = true
			outcome = OutcomeSoldByBid
		}

		res := e.db.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ? AND current_bid = ? AND is_sold = ? AND auction_completed = ?",
				listingID, listing.CurrentBid, false, false).
			Updates(updates)
		if res.Error != nil {
			return nil, "", fmt.Errorf("failed to commit bid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent writer; re-read and re-validate.
			continue
		}

		bid := models.Bid{
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := e.db.WithContext(ctx).Create(&bid).Error; err != nil {
			// The listing state already moved; the history row is best-effort
			// at this point. Log loudly rather than failing the accepted bid.
			logger.Log.Error("Failed to record bid history entry",
				logger.WithListingID(listingID),
				zap.Error(err),
			)
		}

		// Mirror the committed transition onto the row we validated rather
		// than re-reading, which could already reflect a later bid.
		listing.CurrentBid = amount
		listing.HighestBidderID = &bidderID
		if outcome == OutcomeSoldByBid {
			soldAt := now
			deleteAt := now.Add(e.retention)
			listing.IsSold = true
			listing.SoldAt = &soldAt
			listing.DeleteAt = &deleteAt
			listing.AuctionCompleted = true
		}

		if m := metrics.Get(); m != nil {
			m.BidsTotal.WithLabelValues(string(outcome)).Inc()
		}

		// Fire-and-forget fan-out after the transition committed.
		go e.notifyOutbid(listing, bidderID, amount)
		e.publish(listing.UserID, EventBidPlaced, listing)

		logger.Log.Info("Bid accepted",
			logger.WithListingID(listingID),
			logger.WithUserID(bidderID),
			zap.Float64("amount", amount),
			zap.String("outcome", string(outcome)),
		)

		return &listing, outcome, nil
	}

	return nil, "", fmt.Errorf("bid on listing %s: too many concurrent updates", listingID)
}

// MarkSold flips an unsold listing to sold and starts the retention clock.
// Guarded on is_sold=false so it cannot double-apply over a concurrent
// instant buy or settlement.
func (e *Engine) MarkSold(ctx context.Context, listingID string) (*models.Listing, error) {
	now := time.Now().UTC()
	res := e.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND is_sold = ?", listingID, false).
		Updates(map[string]interface{}{
			"is_sold":   true,
			"sold_at":   now,
			"delete_at": now.Add(e.retention),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to mark listing sold: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := e.db.WithContext(ctx).Where("id = ?", listingID).First(&models.Listing{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, fmt.Errorf("failed to load listing: %w", err)
		}
		return nil, ErrListingSold
	}

	var listing models.Listing
	if err := e.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
		return nil, fmt.Errorf("failed to reload listing: %w", err)
	}

	logger.Log.Info("Listing marked sold", logger.WithListingID(listingID))
	return &listing, nil
}

// MarkUnsold reverts a manual sale. Guarded on auction_completed=false so
// it can never undo a settled auction or an instant buy.
func (e *Engine) MarkUnsold(ctx context.Context, listingID string) (*models.Listing, error) {
	res := e.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND auction_completed = ?", listingID, false).
		Updates(map[string]interface{}{
			"is_sold":   false,
			"sold_at":   nil,
			"delete_at": nil,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to mark listing unsold: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if err := e.db.WithContext(ctx).Where("id = ?", listingID).First(&models.Listing{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrListingNotFound
			}
			return nil, fmt.Errorf("failed to load listing: %w", err)
		}
		return nil, ErrAuctionSettled
	}

	var listing models.Listing
	if err := e.db.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
		return nil, fmt.Errorf("failed to reload listing: %w", err)
	}

	logger.Log.Info("Listing marked unsold", logger.WithListingID(listingID))
	return &listing, nil
}

// reject counts and returns a precondition failure without mutating state
func (e *Engine) reject(reason error) error {
	if m := metrics.Get(); m != nil {
		m.BidRejectionsTotal.WithLabelValues(reason.Error()).Inc()
	}
	return reason
}

// notifyOutbid tells every prior distinct bidder (except the one who just
// bid) that the price moved. Best-effort: failures are logged only.
func (e *Engine) notifyOutbid(listing models.Listing, currentBidder string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var bidderIDs []string
	err := e.db.WithContext(ctx).
		Model(&models.Bid{}).
		Distinct("bidder_id").
		Where("listing_id = ? AND bidder_id <> ?", listing.ID, currentBidder).
		Pluck("bidder_id", &bidderIDs).Error
	if err != nil {
		logger.Log.Warn("Failed to load prior bidders for outbid notification",
			logger.WithListingID(listing.ID),
			zap.Error(err),
		)
		return
	}

	for _, bidderID := range bidderIDs {
		e.notify(ctx, bidderID, "New Bid Placed",
			fmt.Sprintf("Someone bid $%.2f on \"%s\"", amount, listing.Name),
			map[string]interface{}{
				"type":       "NEW_BID",
				"listingId":  listing.ID,
				"amount":     amount,
				"currentBid": listing.CurrentBid,
			})
		e.publish(bidderID, EventOutbid, listing)
	}
}

// SettleExpiredAuctions finalizes every auction whose bid window has closed.
// Runs on the settlement ticker; idempotent, and each listing is processed
// independently so one bad record cannot stall the pass.
func (e *Engine) SettleExpiredAuctions(ctx context.Context, now time.Time) error {
	start := time.Now()

	var ended []models.Listing
	err := e.db.WithContext(ctx).
		Where("listing_type IN ? AND bid_end_time <= ? AND auction_completed = ? AND is_sold = ?",
			[]string{models.ListingTypeBid, models.ListingTypeBoth}, now, false, false).
		Find(&ended).Error
	if err != nil {
		return fmt.Errorf("failed to query ended auctions: %w", err)
	}

	if len(ended) == 0 {
		return nil
	}

	logger.Log.Info("Settling ended auctions", zap.Int("count", len(ended)))

	for i := range ended {
		if err := e.settleOne(ctx, &ended[i], now); err != nil {
			logger.Log.Error("Failed to settle auction",
				logger.WithListingID(ended[i].ID),
				zap.Error(err),
			)
		}
	}

	if m := metrics.Get(); m != nil {
		m.SettlementDuration.Observe(time.Since(start).Seconds())
	}

	return nil
}

// settleOne finalizes a single ended auction. The update is guarded on
// auction_completed=false, so a settlement racing an instant buy (or a
// second sweep over the same data) commits at most once — and the winner
// notification rides only on the winning write.
func (e *Engine) settleOne(ctx context.Context, listing *models.Listing, now time.Time) error {
	if listing.HighestBidderID == nil {
		// No bidders: close the auction, keep the listing visible unsold.
		res := e.db.WithContext(ctx).
			Model(&models.Listing{}).
			Where("id = ? AND auction_completed = ?", listing.ID, false).
			Update("auction_completed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if m := metrics.Get(); m != nil {
				m.SettlementsTotal.WithLabelValues(resultClosedUnsold).Inc()
			}
			logger.Log.Info("Auction closed with no bids", logger.WithListingID(listing.ID))
		}
		return nil
	}

	deleteAt := now.Add(e.retention)
	res := e.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND auction_completed = ? AND is_sold = ?", listing.ID, false, false).
		Updates(map[string]interface{}{
			"is_sold":           true,
			"sold_at":           now,
			"delete_at":         deleteAt,
			"auction_completed": true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already settled by a concurrent writer or a previous tick.
		return nil
	}

	if m := metrics.Get(); m != nil {
		m.SettlementsTotal.WithLabelValues(resultSoldByTimeout).Inc()
	}

	winner := *listing.HighestBidderID
	e.notify(ctx, winner, "You Won the Auction!",
		fmt.Sprintf("Congratulations! You won \"%s\" with a bid of $%.2f", listing.Name, listing.CurrentBid),
		map[string]interface{}{
			"type":        "AUCTION_WON",
			"listingId":   listing.ID,
			"listingName": listing.Name,
			"winningBid":  listing.CurrentBid,
		})
	e.publish(winner, EventAuctionWon, listing)
	e.publish(listing.UserID, EventAuctionEnded, listing)

	logger.Log.Info("Auction settled",
		logger.WithListingID(listing.ID),
		zap.String("winner", winner),
		zap.Float64("winning_bid", listing.CurrentBid),
	)

	return nil
}

// notify delivers one push notification, swallowing (but counting) failures
func (e *Engine) notify(ctx context.Context, userID, title, body string, data map[string]interface{}) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, title, body, data); err != nil {
		if m := metrics.Get(); m != nil {
			m.PushFailuresTotal.Inc()
		}
		logger.Log.Warn("Push notification failed",
			logger.WithUserID(userID),
			zap.Error(err),
		)
	}
}

// publish sends a realtime event if a publisher is wired
func (e *Engine) publish(userID, event string, payload interface{}) {
	if e.events == nil {
		return
	}
	e.events.PublishToUser(userID, event, payload)
}
