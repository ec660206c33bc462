package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/bookshelf/internal/models"
	"github.com/charlesng35/bookshelf/internal/services"
	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
	"github.com/charlesng35/bookshelf/pkg/response"
	appValidator "github.com/charlesng35/bookshelf/pkg/validator"
)

const reviewRequiredMessage = "Reviewer name and rating are required"

var ratingRangeMessage = fmt.Sprintf("Rating must be between %d and %d", models.MinRating, models.MaxRating)

// ReviewHandler exposes book reviews over HTTP.
type ReviewHandler struct {
	svc *services.ReviewService
}

// NewReviewHandler constructs a review handler.
func NewReviewHandler(svc *services.ReviewService) (*ReviewHandler, error) {
	if svc == nil {
		return nil, errors.New("review handler: service is required")
	}
	return &ReviewHandler{svc: svc}, nil
}

type createReviewRequest struct {
	ReviewerName string  `json:"reviewer_name" validate:"required,notblank,max=255"`
	Rating       *int    `json:"rating" validate:"required,min=1,max=5"`
	Comment      *string `json:"comment" validate:"omitempty,max=10000"`
}

// List godoc
//
//	@Summary	List reviews of a book
//	@Tags		reviews
//	@Produce	json
//	@Param		id	path		string	true	"Book ID (UUID)"
//	@Success	200	{object}	reviewListResponse
//	@Failure	400	{object}	response.Response
//	@Failure	404	{object}	response.Response
//	@Failure	500	{object}	response.Response
//	@Router		/books/{id}/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}

	reviews, err := h.svc.ListForBook(requestContext(c), bookID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, reviews)
}

// Create godoc
//
//	@Summary	Add a review to a book
//	@Tags		reviews
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Book ID (UUID)"
//	@Param		review	body		createReviewRequest	true	"Review to create"
//	@Success	201		{object}	reviewResponse
//	@Failure	400		{object}	response.Response
//	@Failure	404		{object}	response.Response
//	@Failure	500		{object}	response.Response
//	@Router		/books/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}

	var body createReviewRequest
	if !bindAndValidate(c, &body, describeReviewErrors) {
		return
	}

	review, err := h.svc.Create(requestContext(c), services.CreateReviewInput{
		BookID:       bookID,
		ReviewerName: body.ReviewerName,
		Rating:       *body.Rating,
		Comment:      body.Comment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, review)
}

func describeReviewErrors(ve appValidator.ValidationErrors) *apperrors.AppError {
	switch {
	case ve.HasTag("reviewer_name", "required", "notblank"):
		return apperrors.Validation("reviewer_name", reviewRequiredMessage)
	case ve.HasTag("rating", "required"):
		return apperrors.Validation("rating", reviewRequiredMessage)
	case ve.HasTag("rating", "min", "max"):
		return apperrors.Validation("rating", ratingRangeMessage)
	}
	return nil
}

// swagger envelopes

type reviewResponse struct {
	Success bool          `json:"success"`
	Data    models.Review `json:"data"`
}

type reviewListResponse struct {
	Success bool            `json:"success"`
	Data    []models.Review `json:"data"`
}
