package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visaconnect/internal/models"
	"visaconnect/internal/repositories"
)

// BusinessHandler manages business listings.
type BusinessHandler struct {
	businesses repositories.BusinessRepository
}

// NewBusinessHandler builds a BusinessHandler.
func NewBusinessHandler(businesses repositories.BusinessRepository) *BusinessHandler {
	return &BusinessHandler{businesses: businesses}
}

type createBusinessRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category"`
	Description string `json:"description"`
	City        string `json:"city"`
	State       string `json:"state"`
	Website     string `json:"website"`
}

// Create stores a listing owned by the caller.
func (h *BusinessHandler) Create(c *gin.Context) {
	var req createBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.businesses.Create(c.Request.Context(), models.Business{
		OwnerUserID: c.GetString("userID"),
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		City:        req.City,
		State:       req.State,
		Website:     req.Website,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to create business")
		return
	}
	respondOK(c, created)
}

// Get returns one listing.
func (h *BusinessHandler) Get(c *gin.Context) {
	business, err := h.businesses.Get(c.Request.Context(), c.Param("business_id"))
	if err != nil {
		respondNotFoundOrError(c, err, "business not found")
		return
	}
	respondOK(c, business)
}

// List returns listings, optionally filtered by ?owner= or ?city=.
func (h *BusinessHandler) List(c *gin.Context) {
	listings, err := h.businesses.List(c.Request.Context(), c.Query("owner"), c.Query("city"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load businesses")
		return
	}
	respondOK(c, listings)
}
