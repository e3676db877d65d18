package server

import (
	"errors"

	"github.com/gin-gonic/gin"

	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
)

func (s *Server) ListPlans(c *gin.Context) {
	plans, err := s.subscriptionSvc.ListPlans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, plans)
}

func (s *Server) GetMySubscription(c *gin.Context) {
	userID, _ := currentUserID(c)

	current, err := s.subscriptionSvc.GetCurrent(c.Request.Context(), userID)
	if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		// No assignment means the user meters on the free tier.
		respondOK(c, gin.H{"tier": subscriptiondomain.TierFree})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, current)
}

type subscribeRequest struct {
	Tier          string `json:"tier" binding:"required"`
	PaymentMethod string `json:"payment_method"`
	BillingPeriod string `json:"billing_period"`
}

func (s *Server) Subscribe(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.BillingPeriod == "" {
		req.BillingPeriod = "monthly"
	}

	resp, err := s.subscriptionSvc.Subscribe(c.Request.Context(), subscriptiondomain.SubscribeRequest{
		UserID:        userID,
		Tier:          subscriptiondomain.Tier(req.Tier),
		PaymentMethod: req.PaymentMethod,
		BillingPeriod: req.BillingPeriod,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

type trialRequest struct {
	Tier string `json:"tier" binding:"required"`
}

func (s *Server) ActivateTrial(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req trialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	assignment, err := s.subscriptionSvc.ActivateTrial(c.Request.Context(), userID, subscriptiondomain.Tier(req.Tier))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, assignment)
}

type upgradeRequest struct {
	Tier string `json:"tier" binding:"required"`
}

func (s *Server) Upgrade(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	assignment, err := s.subscriptionSvc.Upgrade(c.Request.Context(), userID, subscriptiondomain.Tier(req.Tier))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, assignment)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) Cancel(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	assignment, err := s.subscriptionSvc.Cancel(c.Request.Context(), subscriptiondomain.CancelRequest{
		UserID: userID,
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, assignment)
}

// CreatePaymentIntent is the payment-first alias of Subscribe: it returns
// the order the client must approve with the gateway.
func (s *Server) CreatePaymentIntent(c *gin.Context) {
	s.Subscribe(c)
}

type confirmPaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.subscriptionSvc.HandleCapture(c.Request.Context(), req.OrderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondOK(c, resp)
}
