package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/bookshelf/internal/models"
	"github.com/charlesng35/bookshelf/internal/services"
	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
	"github.com/charlesng35/bookshelf/pkg/response"
	appValidator "github.com/charlesng35/bookshelf/pkg/validator"
)

const booksRequiredMessage = "Title and author are required"

// BookHandler exposes the book catalogue over HTTP.
type BookHandler struct {
	svc *services.BookService
}

// NewBookHandler constructs a book handler.
func NewBookHandler(svc *services.BookService) (*BookHandler, error) {
	if svc == nil {
		return nil, errors.New("book handler: service is required")
	}
	return &BookHandler{svc: svc}, nil
}

type createBookRequest struct {
	Title       string  `json:"title" validate:"required,notblank,max=255"`
	Author      string  `json:"author" validate:"required,notblank,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
}

// List godoc
//
//	@Summary	List books
//	@Tags		books
//	@Produce	json
//	@Param		limit	query		int	false	"Page size (max 100)"	default(10)
//	@Param		offset	query		int	false	"Number of books to skip"	default(0)
//	@Success	200		{object}	bookListResponse
//	@Failure	400		{object}	response.Response
//	@Failure	500		{object}	response.Response
//	@Router		/books [get]
func (h *BookHandler) List(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", services.DefaultListLimit)
	if err != nil {
		response.Error(c, apperrors.Validation("limit", "Limit must be a non-negative integer"))
		return
	}
	offset, err := parseIntQuery(c, "offset", services.DefaultListOffset)
	if err != nil {
		response.Error(c, apperrors.Validation("offset", "Offset must be a non-negative integer"))
		return
	}
	// a zero page size means "use the default", as with an absent parameter
	if limit == 0 {
		limit = services.DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	books, err := h.svc.List(requestContext(c), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, books, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Count:  len(books),
	})
}

// Create godoc
//
//	@Summary	Create a book
//	@Tags		books
//	@Accept		json
//	@Produce	json
//	@Param		book	body		createBookRequest	true	"Book to create"
//	@Success	201		{object}	bookResponse
//	@Failure	400		{object}	response.Response
//	@Failure	500		{object}	response.Response
//	@Router		/books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var body createBookRequest
	if !bindAndValidate(c, &body, describeBookErrors) {
		return
	}

	book, err := h.svc.Create(requestContext(c), services.CreateBookInput{
		Title:       body.Title,
		Author:      body.Author,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, book)
}

func describeBookErrors(ve appValidator.ValidationErrors) *apperrors.AppError {
	switch {
	case ve.HasTag("title", "required", "notblank"):
		return apperrors.Validation("title", booksRequiredMessage)
	case ve.HasTag("author", "required", "notblank"):
		return apperrors.Validation("author", booksRequiredMessage)
	}
	return nil
}

// swagger envelopes

type bookResponse struct {
	Success bool        `json:"success"`
	Data    models.Book `json:"data"`
}

type bookListResponse struct {
	Success bool           `json:"success"`
	Data    []models.Book  `json:"data"`
	Meta    *response.Meta `json:"meta"`
}
