package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/bookshelf/internal/handlers"
)

func registerBookRoutes(router gin.IRouter, books *handlers.BookHandler, reviews *handlers.ReviewHandler) {
	group := router.Group("/books")
	{
		group.GET("", books.List)
		group.POST("", books.Create)
		group.GET("/:id/reviews", reviews.List)
		group.POST("/:id/reviews", reviews.Create)
	}
}
