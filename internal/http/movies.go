package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
)

const dateLayout = "2006-01-02"

type movieCreateRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description" validate:"max=5000"`
	ReleaseDate     string `json:"releaseDate" validate:"required,datetime=2006-01-02"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0"`
	Genre           string `json:"genre" validate:"max=100"`
	Director        string `json:"director" validate:"max=200"`
}

// moviePatchRequest has no rating field: the stored rating is derived and a
// body carrying one is rejected by the decoder.
type moviePatchRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=5000"`
	ReleaseDate     *string `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	DurationMinutes *int    `json:"durationMinutes" validate:"omitempty,gt=0"`
	Genre           *string `json:"genre" validate:"omitempty,max=100"`
	Director        *string `json:"director" validate:"omitempty,max=200"`
}

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	ReleaseDate     string         `json:"releaseDate"`
	DurationMinutes int            `json:"durationMinutes"`
	Genre           string         `json:"genre"`
	Director        string         `json:"director"`
	Rating          *domain.Rating `json:"rating"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       *time.Time     `json:"deletedAt,omitempty"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.coord.ListMovies(r.Context(), auth.PrincipalFromContext(r.Context()), filters)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	items := make([]movieResponse, 0, len(result.Items))
	for _, movie := range result.Items {
		items = append(items, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: items, NextCursor: result.NextCursor})
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("genre")); val != "" {
		filters.Genre = &val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondValidation(w, err)
		return
	}
	releaseDate, err := time.Parse(dateLayout, req.ReleaseDate)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "releaseDate must follow YYYY-MM-DD format")
		return
	}

	movie, err := s.coord.CreateMovie(r.Context(), auth.PrincipalFromContext(r.Context()), domain.MovieFields{
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		ReleaseDate:     releaseDate,
		DurationMinutes: req.DurationMinutes,
		Genre:           strings.TrimSpace(req.Genre),
		Director:        strings.TrimSpace(req.Director),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/movies/"+movie.ID)
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.coord.GetMovie(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	var req moviePatchRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondValidation(w, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return
	}

	movie, err := s.coord.UpdateMovie(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(movie))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.DeleteMovie(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req moviePatchRequest) toPatch() (domain.MoviePatch, error) {
	patch := domain.MoviePatch{
		Title:           trimmedPtr(req.Title),
		Description:     trimmedPtr(req.Description),
		DurationMinutes: req.DurationMinutes,
		Genre:           trimmedPtr(req.Genre),
		Director:        trimmedPtr(req.Director),
	}
	if req.ReleaseDate != nil {
		d, err := time.Parse(dateLayout, *req.ReleaseDate)
		if err != nil {
			return patch, fmt.Errorf("releaseDate must follow YYYY-MM-DD format")
		}
		patch.ReleaseDate = &d
	}
	return patch, nil
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:              movie.ID,
		Title:           movie.Title,
		Description:     movie.Description,
		ReleaseDate:     movie.ReleaseDate.Format(dateLayout),
		DurationMinutes: movie.DurationMinutes,
		Genre:           movie.Genre,
		Director:        movie.Director,
		Rating:          movie.Rating,
		CreatedAt:       movie.CreatedAt,
		UpdatedAt:       movie.UpdatedAt,
		DeletedAt:       movie.Deletion.Column(),
	}
}

func trimmedPtr(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	return &val
}
