package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	resolverdomain "github.com/transitbase/faretable/internal/resolver/domain"
)

// ResolvePrices is the read path the booking surfaces hit. It always answers
// 200; an empty price list means "no fare available" whatever the cause.
func (s *Server) ResolvePrices(c *gin.Context) {
	resp, err := s.resolverSvc.Resolve(c.Request.Context(), resolverdomain.Query{
		ServiceID:     c.Param("id"),
		ClientID:      c.Query("client_id"),
		RateID:        c.Query("rate_id"),
		VehicleTypeID: c.Query("vehicle_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
