package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing types mirror the marketplace UI: fixed price, auction, or both.
const (
	ListingTypeSell = "Sell"
	ListingTypeBid  = "Bid"
	ListingTypeBoth = "Both"
)

// Listing represents a marketplace item, sellable at a fixed price and/or via bidding
type Listing struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Name        string  `gorm:"not null" json:"name"`
	Description string  `gorm:"type:text;not null" json:"description"`
	Price       float64 `gorm:"not null" json:"price"`
	Category    string  `gorm:"default:Other" json:"category"`

	Images StringArray `gorm:"type:text[]" json:"images"`

	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Phone     string  `json:"phone"`

	// Sale state. DeleteAt is the media-purge horizon set when the item
	// sells; the cleanup engine clears Images and nulls DeleteAt once it
	// passes. The record itself is kept for purchase history.
	IsSold   bool       `gorm:"default:false;index" json:"is_sold"`
	SoldAt   *time.Time `json:"sold_at,omitempty"`
	DeleteAt *time.Time `gorm:"index" json:"delete_at,omitempty"`

	// Auction state. CurrentBid only ever increases and never exceeds Price.
	// AuctionCompleted is monotonic: once settled a listing never reopens.
	ListingType      string     `gorm:"default:Sell" json:"listing_type"`
	CurrentBid       float64    `gorm:"default:0" json:"current_bid"`
	HighestBidderID  *string    `gorm:"type:uuid" json:"highest_bidder_id,omitempty"`
	HighestBidder    *User      `gorm:"foreignKey:HighestBidderID" json:"highest_bidder,omitempty"`
	BidEndTime       *time.Time `gorm:"index" json:"bid_end_time,omitempty"`
	AuctionCompleted bool       `gorm:"default:false" json:"auction_completed"`

	Bids []Bid `gorm:"foreignKey:ListingID" json:"bids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is provided.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Biddable reports whether the listing accepts bids at all.
func (l *Listing) Biddable() bool {
	return l.ListingType == ListingTypeBid || l.ListingType == ListingTypeBoth
}

// Bid is one entry in a listing's append-only bid history
type Bid struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	ListingID string  `gorm:"not null;index" json:"listing_id"`
	BidderID  string  `gorm:"not null;index;type:uuid" json:"bidder_id"`
	Bidder    User    `gorm:"foreignKey:BidderID" json:"bidder,omitempty"`
	Amount    float64 `gorm:"not null" json:"amount"`

	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key when none is provided.
func (b *Bid) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
