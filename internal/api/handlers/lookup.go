package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Sternrassler/portal-results/pkg/dispatch"
	"github.com/Sternrassler/portal-results/pkg/fetch"
	"github.com/Sternrassler/portal-results/pkg/identifier"
	"github.com/Sternrassler/portal-results/pkg/portal"
	"github.com/gin-gonic/gin"
)

// Lookup is the service behind the lookup endpoints.
type Lookup interface {
	Single(ctx context.Context, indexURL, id string) (fetch.Outcome, error)
	Range(ctx context.Context, indexURL, start, end string) (dispatch.ResultMap, error)
}

// SingleRequest is the body of POST /single-post.
type SingleRequest struct {
	IndexURL string `json:"index_url" binding:"required"`
	USN      string `json:"usn" binding:"required"`
}

// SingleResponse is the answer of POST /single-post.
type SingleResponse struct {
	USN  string `json:"usn"`
	HTML string `json:"html"`
}

// RangeRequest is the body of POST /range-post.
type RangeRequest struct {
	IndexURL string `json:"index_url" binding:"required"`
	StartUSN string `json:"start_usn" binding:"required"`
	EndUSN   string `json:"end_usn" binding:"required"`
}

// Range errors are reported in the response body with these messages.
const (
	msgMalformedRange = "Cannot auto-increment USN format"
	msgInvalidOrder   = "End USN must be >= Start USN"
	msgInvalidURL     = "Invalid index_url format"
)

// Single looks up one identifier. Exhausted retries answer 200 with the
// marker as html; a fatal lookup answers 500.
func Single(svc Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SingleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		out, err := svc.Single(c.Request.Context(), req.IndexURL, req.USN)
		switch {
		case errors.Is(err, portal.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidURL})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": out.Err})
			return
		}

		c.JSON(http.StatusOK, SingleResponse{USN: out.Identifier, HTML: out.Value()})
	}
}

// Range looks up every identifier of the range. Malformed, inverted or too
// large ranges answer 200 with {"error": message}.
func Range(svc Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		results, err := svc.Range(c.Request.Context(), req.IndexURL, req.StartUSN, req.EndUSN)
		switch {
		case errors.Is(err, portal.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidURL})
			return
		case errors.Is(err, identifier.ErrMalformedRange):
			c.JSON(http.StatusOK, gin.H{"error": msgMalformedRange})
			return
		case errors.Is(err, identifier.ErrInvalidRangeOrder):
			c.JSON(http.StatusOK, gin.H{"error": msgInvalidOrder})
			return
		case errors.Is(err, identifier.ErrRangeTooLarge):
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, results.Values())
	}
}
