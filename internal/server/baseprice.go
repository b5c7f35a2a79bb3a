package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
)

type setBasePriceRequest struct {
	RateID        string `json:"rate_id"`
	VehicleTypeID string `json:"vehicle_type_id"`
	PriceCents    int64  `json:"price_cents"`
}

func (s *Server) SetBasePrice(c *gin.Context) {
	var req setBasePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.basePriceSvc.SetRatePrice(c.Request.Context(), basepricedomain.SetRatePriceRequest{
		ServiceID:     c.Param("id"),
		RateID:        req.RateID,
		VehicleTypeID: req.VehicleTypeID,
		PriceCents:    req.PriceCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListBasePrices(c *gin.Context) {
	items, err := s.basePriceSvc.ListRatePrices(c.Request.Context(), basepricedomain.ListRatePricesRequest{
		ServiceID:     c.Param("id"),
		RateID:        c.Query("rate_id"),
		VehicleTypeID: c.Query("vehicle_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) DeleteBasePrice(c *gin.Context) {
	if err := s.basePriceSvc.DeleteRatePrice(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
