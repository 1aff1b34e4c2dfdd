package seed

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/models"
	"github.com/mcdev12/gavel/internal/store"
)

type seedItem struct {
	id            string
	title         string
	description   string
	imageURL      string
	startingPrice int64
	endsIn        time.Duration
}

// Auctions end at staggered times from 2-15 minutes in the future so the
// countdown and anti-snipe paths get exercised quickly on a fresh boot.
var items = []seedItem{
	{"item_1", "Rolex Submariner Date", "41mm, Black Dial, Oystersteel", "https://images.unsplash.com/photo-1587836374828-4dbafa94cf0e?w=400&h=300&fit=crop", 8500, 3 * time.Minute},
	{"item_2", "Vintage Leica Camera", "Classic Film Camera, Pristine Condition", "https://images.unsplash.com/photo-1526170375885-4d8ecf77b99f?w=400&h=300&fit=crop", 2400, 5 * time.Minute},
	{"item_3", "MacBook Pro 16\"", "96GB RAM, 4TB SSD, Space Black", "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=400&h=300&fit=crop", 3200, 4 * time.Minute},
	{"item_4", "Abstract Oil Painting", "48x36\" Canvas, Artist Signed 2024", "https://images.unsplash.com/photo-1541961017774-22349e4a1262?w=400&h=300&fit=crop", 1800, 7 * time.Minute},
	{"item_5", "Designer Leather Bag", "Premium Leather, Brand New", "https://images.unsplash.com/photo-1548036328-c9fa89d128fa?w=400&h=300&fit=crop", 1600, 6 * time.Minute},
	{"item_6", "Professional DSLR Camera", "Full-Frame, 8K Video Ready", "https://images.unsplash.com/photo-1516035069371-29a1b244cc32?w=400&h=300&fit=crop", 2800, 8 * time.Minute},
	{"item_7", "Rare First Edition Book", "Classic Literature, Signed Copy", "https://images.unsplash.com/photo-1544947950-fa07a98d237f?w=400&h=300&fit=crop", 4500, 10 * time.Minute},
	{"item_8", "Premium Headphones", "Wireless Noise Cancelling", "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=400&h=300&fit=crop", 280, 2 * time.Minute},
	{"item_9", "Luxury Swiss Watch", "Steel Bracelet, Automatic Movement", "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=400&h=300&fit=crop", 5200, 9 * time.Minute},
	{"item_10", "Ergonomic Office Chair", "Premium Mesh, Fully Adjustable", "https://images.unsplash.com/photo-1580480055273-228ff5388ef8?w=400&h=300&fit=crop", 950, 12 * time.Minute},
	{"item_11", "VR Headset Pro", "Latest Generation, Complete Kit", "https://images.unsplash.com/photo-1622979135225-d2ba269cf1ac?w=400&h=300&fit=crop", 3200, 11 * time.Minute},
	{"item_12", "Designer Sunglasses", "Limited Edition, Polarized Lenses", "https://images.unsplash.com/photo-1572635196237-14b3f281503f?w=400&h=300&fit=crop", 780, 15 * time.Minute},
}

// Auctions populates the store with the initial lot catalogue.
func Auctions(s *store.Store, clock clockwork.Clock) error {
	now := clock.Now().UnixMilli()

	for _, item := range items {
		auction := &models.Auction{
			ID:            item.id,
			Title:         item.title,
			Description:   item.description,
			ImageURL:      item.imageURL,
			StartingPrice: item.startingPrice,
			CurrentBid:    item.startingPrice,
			EndTime:       now + item.endsIn.Milliseconds(),
			Status:        models.AuctionStatusActive,
		}
		if _, err := s.CreateAuction(auction); err != nil {
			return fmt.Errorf("failed to seed auction %s: %w", item.id, err)
		}
	}

	log.Info().Int("count", len(items)).Msg("seeded auction items")
	return nil
}
