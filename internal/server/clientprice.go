package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
	obscontext "github.com/transitbase/faretable/internal/observability/context"
)

type applyClientPricesRequest struct {
	Overrides []clientpricedomain.OverrideInput `json:"overrides"`
}

// ApplyClientPrices replaces the full override set a client holds on a
// service. The request body is the complete desired state; combinations it
// omits revert to the default fare.
func (s *Server) ApplyClientPrices(c *gin.Context) {
	var req applyClientPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientPriceSvc.Apply(c.Request.Context(), clientpricedomain.ApplyRequest{
		ServiceID: c.Param("id"),
		ClientID:  c.Param("clientID"),
		Actor:     requestActor(c),
		Overrides: req.Overrides,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ClientPriceHistory(c *gin.Context) {
	items, err := s.clientPriceSvc.History(c.Request.Context(), clientpricedomain.HistoryRequest{
		ServiceID: c.Param("id"),
		ClientID:  c.Param("clientID"),
		RateID:    c.Query("rate_id"),
		VehicleID: c.Query("vehicle_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ClientOrphanPrices(c *gin.Context) {
	items, err := s.resolverSvc.OrphanOverrides(c.Request.Context(), c.Param("id"), c.Param("clientID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func requestActor(c *gin.Context) string {
	if _, id := obscontext.ActorFromContext(c.Request.Context()); strings.TrimSpace(id) != "" {
		return id
	}
	return "system"
}
