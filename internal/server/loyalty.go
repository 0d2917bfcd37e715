package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	loyaltydomain "github.com/smallbiznis/loyalty/internal/loyalty/domain"
	"github.com/smallbiznis/loyalty/pkg/db/pagination"
)

type awardPointsRequest struct {
	CustomerID string `json:"customer_id"`
	SaleID     string `json:"sale_id,omitempty"`
	SaleAmount int64  `json:"sale_amount"`
}

func (s *Server) AwardPoints(c *gin.Context) {
	var req awardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.AwardForSale(c.Request.Context(), loyaltydomain.AwardRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		SaleID:     strings.TrimSpace(req.SaleID),
		SaleAmount: req.SaleAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type redeemPointsRequest struct {
	CustomerID  string  `json:"customer_id"`
	Points      int64   `json:"points"`
	RewardType  string  `json:"reward_type"`
	RewardValue float64 `json:"reward_value"`
	Description string  `json:"description,omitempty"`
}

func (s *Server) RedeemPoints(c *gin.Context) {
	var req redeemPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.Redeem(c.Request.Context(), loyaltydomain.RedeemRequest{
		CustomerID:  strings.TrimSpace(req.CustomerID),
		Points:      req.Points,
		RewardType:  loyaltydomain.RewardType(strings.TrimSpace(req.RewardType)),
		RewardValue: req.RewardValue,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type adjustPointsRequest struct {
	CustomerID  string `json:"customer_id"`
	Points      int64  `json:"points"`
	Description string `json:"description"`
}

func (s *Server) AdjustPoints(c *gin.Context) {
	var req adjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.Adjust(c.Request.Context(), loyaltydomain.AdjustRequest{
		CustomerID:  strings.TrimSpace(req.CustomerID),
		Points:      req.Points,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateSettingsRequest struct {
	PointsPerUnit int64 `json:"points_per_unit"`
}

func (s *Server) GetSettings(c *gin.Context) {
	resp, err := s.loyaltySvc.GetSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.UpdateSettings(c.Request.Context(), loyaltydomain.UpdateSettingsRequest{
		PointsPerUnit: req.PointsPerUnit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBalance(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.loyaltySvc.Balance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loyaltySvc.History(c.Request.Context(), loyaltydomain.HistoryRequest{
		CustomerID: strings.TrimSpace(c.Param("id")),
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
