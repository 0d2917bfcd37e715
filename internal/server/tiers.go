package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/loyalty/internal/tier/domain"
)

func (s *Server) ListTiers(c *gin.Context) {
	ladder, err := s.tierSvc.Ladder(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ladder.Sorted()})
}

type upsertTierRequest struct {
	Tier                  string  `json:"tier"`
	MinimumLifetimePoints int64   `json:"minimum_lifetime_points"`
	PointsMultiplier      float64 `json:"points_multiplier"`
	DiscountPercentage    float64 `json:"discount_percentage"`
	BirthdayBonus         int64   `json:"birthday_bonus"`
}

func (s *Server) UpsertTier(c *gin.Context) {
	var req upsertTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tierSvc.Upsert(c.Request.Context(), tierdomain.UpsertTierRequest{
		Tier:                  tierdomain.Tier(strings.ToLower(strings.TrimSpace(req.Tier))),
		MinimumLifetimePoints: req.MinimumLifetimePoints,
		PointsMultiplier:      req.PointsMultiplier,
		DiscountPercentage:    req.DiscountPercentage,
		BirthdayBonus:         req.BirthdayBonus,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
