package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/loyalty/internal/customer/domain"
	offerdomain "github.com/smallbiznis/loyalty/internal/offer/domain"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
)

type createOfferRequest struct {
	Name          string  `json:"name"`
	RequiredTier  string  `json:"required_tier"`
	OfferType     string  `json:"offer_type"`
	DiscountValue float64 `json:"discount_value"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

func (s *Server) CreateOffer(c *gin.Context) {
	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartDate))
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_start_date", "invalid start_date"))
		return
	}
	endDate, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndDate))
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid end_date"))
		return
	}

	resp, err := s.offerSvc.Create(c.Request.Context(), offerdomain.CreateOfferRequest{
		Name:          strings.TrimSpace(req.Name),
		RequiredTier:  tierdomain.Tier(strings.ToLower(strings.TrimSpace(req.RequiredTier))),
		OfferType:     offerdomain.OfferType(strings.TrimSpace(req.OfferType)),
		DiscountValue: req.DiscountValue,
		StartDate:     startDate,
		EndDate:       endDate,
		IsActive:      req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOffers(c *gin.Context) {
	resp, err := s.offerSvc.List(c.Request.Context(), offerdomain.ListOffersRequest{
		Admin: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListOffersForCustomer returns only live offers the customer's tier can
// reach.
func (s *Server) ListOffersForCustomer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	cust, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.offerSvc.List(c.Request.Context(), offerdomain.ListOffersRequest{
		Tier: cust.Tier,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateOffer(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.offerSvc.Deactivate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
