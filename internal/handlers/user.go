package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"visaconnect/internal/models"
	"visaconnect/internal/repositories"
)

// uniqueViolation is the postgres error code for a duplicate key.
const uniqueViolation = "23505"

// UserHandler manages directory profiles.
type UserHandler struct {
	users repositories.UserRepository
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

type registerUserRequest struct {
	Email           string           `json:"email" binding:"required,email"`
	FirstName       string           `json:"firstName"`
	LastName        string           `json:"lastName"`
	VisaType        string           `json:"visaType"`
	Occupation      string           `json:"occupation"`
	Employer        string           `json:"employer"`
	CurrentLocation *models.Location `json:"currentLocation"`
}

// Register creates a profile for the authenticated identity. The profile id
// is the identity provider's user id, so a duplicate registration conflicts.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	user := models.User{
		ID:         c.GetString("userID"),
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		VisaType:   req.VisaType,
		Occupation: req.Occupation,
		Employer:   req.Employer,
	}
	if req.CurrentLocation != nil {
		raw, err := json.Marshal(req.CurrentLocation)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid location")
			return
		}
		user.CurrentLocation = raw
	}

	created, err := h.users.Create(c.Request.Context(), user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			respondError(c, http.StatusConflict, "user already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	respondOK(c, created)
}

// Me returns the caller's own profile plus the derived completion
// percentage consumed by the client session.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondNotFoundOrError(c, err, "user not found")
		return
	}
	respondOK(c, gin.H{"user": user, "completionPercent": user.CompletionPercent()})
}

// Get returns a member's public profile.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondNotFoundOrError(c, err, "user not found")
		return
	}
	respondOK(c, user)
}

// List returns the member directory excluding the caller.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load users")
		return
	}
	respondOK(c, users)
}

type updateUserRequest struct {
	FirstName         *string          `json:"firstName"`
	LastName          *string          `json:"lastName"`
	VisaType          *string          `json:"visaType"`
	Occupation        *string          `json:"occupation"`
	Employer          *string          `json:"employer"`
	CurrentLocation   *models.Location `json:"currentLocation"`
	ProfilePhotoURL   *string          `json:"profilePhotoUrl"`
	Bio               *string          `json:"bio"`
	Nationality       *string          `json:"nationality"`
	MentorshipOffered *bool            `json:"mentorshipOffered"`
}

// Update applies a partial profile update. Only the caller's own profile can
// be updated.
func (h *UserHandler) Update(c *gin.Context) {
	userID := c.GetString("userID")
	if c.Param("user_id") != userID {
		respondError(c, http.StatusForbidden, "cannot update another user's profile")
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	updates := map[string]any{}
	setIf(updates, "first_name", req.FirstName)
	setIf(updates, "last_name", req.LastName)
	setIf(updates, "visa_type", req.VisaType)
	setIf(updates, "occupation", req.Occupation)
	setIf(updates, "employer", req.Employer)
	setIf(updates, "profile_photo_url", req.ProfilePhotoURL)
	setIf(updates, "bio", req.Bio)
	setIf(updates, "nationality", req.Nationality)
	if req.MentorshipOffered != nil {
		updates["mentorship_offered"] = *req.MentorshipOffered
	}
	if req.CurrentLocation != nil {
		raw, err := json.Marshal(req.CurrentLocation)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid location")
			return
		}
		updates["current_location"] = raw
	}

	user, err := h.users.Update(c.Request.Context(), userID, updates)
	if err != nil {
		respondNotFoundOrError(c, err, "failed to update user")
		return
	}
	respondOK(c, gin.H{"user": user, "completionPercent": user.CompletionPercent()})
}

func setIf(updates map[string]any, column string, val *string) {
	if val != nil {
		updates[column] = *val
	}
}
