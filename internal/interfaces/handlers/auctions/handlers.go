package auctions

import (
	"strconv"
	"time"

	auctionsvc "auction-backend/internal/application/auctions"
	"auction-backend/internal/domain"
	"auction-backend/internal/middleware"
	"auction-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultEventPage = 100

type Handlers struct {
	Service *auctionsvc.Service
}

type createAuctionBody struct {
	LotRef      string    `json:"lot_ref"`
	SellerID    string    `json:"seller_id"`
	StartingBid int64     `json:"starting_bid"`
	EndAt       time.Time `json:"end_at"`
}

type bidBody struct {
	Amount int64 `json:"amount"`
}

type proxyBidBody struct {
	MaxAmount int64 `json:"max_amount"`
}

// POST /api/v1/auctions
func (h *Handlers) CreateAuction(c *fiber.Ctx) error {
	var body createAuctionBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	sellerID, err := uuid.Parse(body.SellerID)
	if err != nil {
		return response.Error(c, "seller_id must be a uuid", fiber.StatusBadRequest, nil)
	}
	auction, err := h.Service.CreateAuction(c.UserContext(), auctionsvc.CreateAuctionInput{
		LotRef:      body.LotRef,
		SellerID:    sellerID,
		StartingBid: body.StartingBid,
		EndAt:       body.EndAt,
	})
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Auction created", auction, nil)
}

// GET /api/v1/auctions/:id
func (h *Handlers) GetAuction(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	auction, err := h.Service.GetAuction(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Auction fetched", auction, nil)
}

// GET /api/v1/auctions/:id/bids
func (h *Handlers) ListBids(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	bids, err := h.Service.ListBids(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Bids fetched", bids, fiber.Map{"count": len(bids)})
}

// GET /api/v1/auctions/:id/events?after=<sequence>&limit=<n>
func (h *Handlers) ListEvents(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	after, err := strconv.ParseInt(c.Query("after", "0"), 10, 64)
	if err != nil || after < 0 {
		return response.Error(c, "after must be a non-negative integer", fiber.StatusBadRequest, nil)
	}
	limit := c.QueryInt("limit", defaultEventPage)
	events, err := h.Service.ListEvents(c.UserContext(), id, after, limit)
	if err != nil {
		return err
	}
	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Sequence
	}
	return response.Success(c, "Events fetched", events, fiber.Map{"count": len(events), "next_after": next})
}

// POST /api/v1/auctions/:id/bids. The bidder is always the session user.
func (h *Handlers) PlaceBid(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	bidderID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body bidBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.PlaceBid(c.UserContext(), id, bidderID, body.Amount)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Bid accepted", bidResponse(result), nil)
}

// PUT /api/v1/auctions/:id/proxy-bid
func (h *Handlers) SetProxyBid(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	bidderID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body proxyBidBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.SetProxyBid(c.UserContext(), id, bidderID, body.MaxAmount)
	if err != nil {
		return err
	}
	return response.Success(c, "Proxy bid set", bidResponse(result), nil)
}

// DELETE /api/v1/auctions/:id/proxy-bid
func (h *Handlers) CancelProxyBid(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	bidderID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.Service.CancelProxyBid(c.UserContext(), id, bidderID); err != nil {
		return err
	}
	return response.Success(c, "Proxy bid cancelled", fiber.Map{"auction_id": id}, nil)
}

// POST /api/v1/auctions/:id/close
func (h *Handlers) CloseAuction(c *fiber.Ctx) error {
	id, err := auctionID(c)
	if err != nil {
		return err
	}
	s, err := h.Service.CloseAuction(c.UserContext(), id)
	if err != nil {
		return err
	}
	msg := "Auction settled"
	if s.AlreadyClosed {
		msg = "Auction already closed"
	}
	return response.Success(c, msg, fiber.Map{
		"auction_id":     s.AuctionID,
		"winner_id":      s.WinnerID,
		"final_amount":   s.FinalAmount,
		"closed_at":      s.ClosedAt,
		"unit_serial":    s.UnitSerial,
		"already_closed": s.AlreadyClosed,
	}, nil)
}

// POST /api/v1/auctions/close-expired
func (h *Handlers) CloseExpired(c *fiber.Ctx) error {
	r, err := h.Service.CloseExpiredAuctions(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, "Sweep complete", fiber.Map{
		"scanned": r.Scanned,
		"closed":  r.Closed,
		"failed":  r.Failed,
	}, nil)
}

func auctionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("auction id must be a uuid")
	}
	return id, nil
}

func bidResponse(r *auctionsvc.BidResult) fiber.Map {
	bids := make([]fiber.Map, 0, len(r.Bids))
	for _, b := range r.Bids {
		bids = append(bids, fiber.Map{
			"bidder_id":          b.BidderID,
			"amount":             b.Amount,
			"is_proxy_generated": b.IsProxyGenerated,
			"sequence":           b.Sequence,
		})
	}
	return fiber.Map{
		"accepted":          r.Accepted,
		"leading":           r.Leading,
		"highest_bid":       r.HighestBid,
		"highest_bidder_id": r.HighestBidderID,
		"end_at":            r.EndAt,
		"extended":          r.Extended,
		"bids":              bids,
	}
}
