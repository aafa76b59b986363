package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

type reviewRequest struct {
	Text   string `json:"text" validate:"required,min=10,max=2000"`
	Rating int    `json:"rating" validate:"required,min=1,max=10"`
}

type reviewResponse struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Rating    int        `json:"rating"`
	MovieID   string     `json:"movieId"`
	AuthorID  string     `json:"authorId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type reviewListResponse struct {
	Items []reviewResponse `json:"items"`
}

func (s *Server) decodeReview(w http.ResponseWriter, r *http.Request) (reviewRequest, bool) {
	var req reviewRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return req, false
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := validate.Struct(req); err != nil {
		s.respondValidation(w, err)
		return req, false
	}
	return req, true
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReview(w, r)
	if !ok {
		return
	}

	review, err := s.coord.CreateReview(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req.Text, req.Rating)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/reviews/"+review.ID)
	s.respondJSON(w, http.StatusCreated, toReviewResponse(review))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReview(w, r)
	if !ok {
		return
	}

	review, err := s.coord.UpdateReview(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), req.Text, req.Rating)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DeleteReview(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.coord.GetReview(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.coord.ListReviewsByMovie(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	s.respondReviews(w, r, reviews, err)
}

func (s *Server) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.coord.ListReviewsByUser(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	s.respondReviews(w, r, reviews, err)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.coord.ListReviews(r.Context(), auth.PrincipalFromContext(r.Context()))
	s.respondReviews(w, r, reviews, err)
}

func (s *Server) respondReviews(w http.ResponseWriter, r *http.Request, reviews []domain.Review, err error) {
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	items := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, reviewListResponse{Items: items})
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		Text:      review.Text,
		Rating:    review.Rating,
		MovieID:   review.MovieID,
		AuthorID:  review.AuthorID,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
		DeletedAt: review.Deletion.Column(),
	}
}
