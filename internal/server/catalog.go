package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
)

func (s *Server) CreatePoi(c *gin.Context) {
	var req catalogdomain.CreatePoiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreatePoi(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListPois(c *gin.Context) {
	items, err := s.catalogSvc.ListPois(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) DeletePoi(c *gin.Context) {
	if err := s.catalogSvc.DeletePoi(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) CreateVehicleType(c *gin.Context) {
	var req catalogdomain.CreateVehicleTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateVehicleType(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListVehicleTypes(c *gin.Context) {
	items, err := s.catalogSvc.ListVehicleTypes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) DeleteVehicleType(c *gin.Context) {
	if err := s.catalogSvc.DeleteVehicleType(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) CreateRate(c *gin.Context) {
	var req catalogdomain.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateRate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListRates(c *gin.Context) {
	items, err := s.catalogSvc.ListRates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) DeleteRate(c *gin.Context) {
	if err := s.catalogSvc.DeleteRate(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createServiceRequest struct {
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	OriginID      *string        `json:"origin_id"`
	DestinationID string         `json:"destination_id"`
	DefaultRateID string         `json:"default_rate_id"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *Server) CreateService(c *gin.Context) {
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateService(c.Request.Context(), catalogdomain.CreateServiceRequest{
		Name:          strings.TrimSpace(req.Name),
		Code:          strings.TrimSpace(req.Code),
		OriginID:      req.OriginID,
		DestinationID: strings.TrimSpace(req.DestinationID),
		DefaultRateID: strings.TrimSpace(req.DefaultRateID),
		Metadata:      req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListServices(c *gin.Context) {
	items, err := s.catalogSvc.ListServices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetService(c *gin.Context) {
	resp, err := s.catalogSvc.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteService(c *gin.Context) {
	if err := s.catalogSvc.DeleteService(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
