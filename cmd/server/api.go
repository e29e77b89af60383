package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/golffinder/leaderboard-engine/config"
	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
	"github.com/golffinder/leaderboard-engine/internal/engine"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// api exposes the engine's operations as a JSON surface.
type api struct {
	engine *engine.Engine
	flags  *config.FeatureFlags
	log    *logger.Logger
}

func newAPI(e *engine.Engine, flags *config.FeatureFlags, log *logger.Logger) *api {
	return &api{engine: e, flags: flags, log: log.With(logger.Component("api"))}
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/leaderboards", a.createLeaderboard)
	mux.HandleFunc("GET /api/leaderboards/{id}", a.getLeaderboard)
	mux.HandleFunc("PUT /api/leaderboards/{id}", a.updateLeaderboard)
	mux.HandleFunc("DELETE /api/leaderboards/{id}", a.deleteLeaderboard)
	mux.HandleFunc("GET /api/leaderboards/{id}/entries", a.getEntries)
	mux.HandleFunc("POST /api/leaderboards/{id}/entries", a.submitEntry)
	mux.HandleFunc("PUT /api/leaderboards/{id}/entries/{entryID}", a.updateEntry)
	mux.HandleFunc("POST /api/leaderboards/{id}/live", a.updateLivePosition)
	mux.HandleFunc("GET /api/courses/{courseID}/leaderboards", a.getCourseLeaderboards)
	mux.HandleFunc("GET /api/tournaments/{tournamentID}/leaderboards", a.getTournamentLeaderboards)
	mux.HandleFunc("GET /api/players/{playerID}/friends-leaderboards", a.getFriendsLeaderboards)
	mux.HandleFunc("GET /api/overall", a.getOverallLeaderboards)
	mux.HandleFunc("GET /api/metrics", a.getMetrics)
}

// ──────────────────────────────────────────────────────────────────────────────
// DTOs
// ──────────────────────────────────────────────────────────────────────────────

type leaderboardDTO struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	TournamentID string     `json:"tournament_id,omitempty"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Type         string     `json:"type"`
	Period       string     `json:"period"`
	MaxEntries   int        `json:"max_entries"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	EntryFee     float64    `json:"entry_fee,omitempty"`
	PrizePool    float64    `json:"prize_pool,omitempty"`
	Entries      []entryDTO `json:"entries,omitempty"`
}

type entryDTO struct {
	ID               string    `json:"id"`
	LeaderboardID    string    `json:"leaderboard_id"`
	PlayerID         string    `json:"player_id"`
	PlayerName       string    `json:"player_name"`
	Score            int       `json:"score"`
	ScoreToPar       int       `json:"score_to_par"`
	Handicap         *float64  `json:"handicap,omitempty"`
	Position         int       `json:"position"`
	PreviousPosition int       `json:"previous_position,omitempty"`
	HolesPlayed      int       `json:"holes_played"`
	IsLive           bool      `json:"is_live"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type livePositionRequest struct {
	PlayerID       string `json:"player_id"`
	CurrentScore   int    `json:"current_score"`
	HolesCompleted int    `json:"holes_completed"`
}

func toLeaderboardDTO(lb *leaderboard.Leaderboard) leaderboardDTO {
	dto := leaderboardDTO{
		ID:           lb.ID,
		CourseID:     lb.CourseID,
		TournamentID: lb.TournamentID,
		Name:         lb.Name,
		Description:  lb.Description,
		Type:         string(lb.Type),
		Period:       string(lb.Period),
		MaxEntries:   lb.MaxEntries,
		IsActive:     lb.IsActive,
		CreatedAt:    lb.CreatedAt,
		UpdatedAt:    lb.UpdatedAt,
		ExpiresAt:    lb.ExpiresAt,
		EntryFee:     lb.EntryFee,
		PrizePool:    lb.PrizePool,
	}
	for _, e := range lb.Entries {
		dto.Entries = append(dto.Entries, toEntryDTO(e))
	}
	return dto
}

func toLeaderboardDTOs(boards []*leaderboard.Leaderboard) []leaderboardDTO {
	dtos := make([]leaderboardDTO, 0, len(boards))
	for _, lb := range boards {
		dtos = append(dtos, toLeaderboardDTO(lb))
	}
	return dtos
}

func toEntryDTO(e *leaderboard.Entry) entryDTO {
	return entryDTO{
		ID:               e.ID,
		LeaderboardID:    e.LeaderboardID,
		PlayerID:         e.PlayerID,
		PlayerName:       e.PlayerName,
		Score:            e.Score,
		ScoreToPar:       e.ScoreToPar,
		Handicap:         e.Handicap,
		Position:         int(e.Position),
		PreviousPosition: int(e.PreviousPosition),
		HolesPlayed:      e.HolesPlayed,
		IsLive:           e.IsLive,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (dto leaderboardDTO) toDomain() *leaderboard.Leaderboard {
	return &leaderboard.Leaderboard{
		ID:           dto.ID,
		CourseID:     dto.CourseID,
		TournamentID: dto.TournamentID,
		Name:         dto.Name,
		Description:  dto.Description,
		Type:         leaderboard.Type(dto.Type),
		Period:       leaderboard.Period(dto.Period),
		MaxEntries:   dto.MaxEntries,
		IsActive:     dto.IsActive,
		CreatedAt:    dto.CreatedAt,
		UpdatedAt:    dto.UpdatedAt,
		ExpiresAt:    dto.ExpiresAt,
		EntryFee:     dto.EntryFee,
		PrizePool:    dto.PrizePool,
	}
}

func (dto entryDTO) toDomain() *leaderboard.Entry {
	return &leaderboard.Entry{
		ID:            dto.ID,
		LeaderboardID: dto.LeaderboardID,
		PlayerID:      dto.PlayerID,
		PlayerName:    dto.PlayerName,
		Score:         dto.Score,
		ScoreToPar:    dto.ScoreToPar,
		Handicap:      dto.Handicap,
		HolesPlayed:   dto.HolesPlayed,
		IsLive:        dto.IsLive,
		UpdatedAt:     dto.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// HANDLERS
// ──────────────────────────────────────────────────────────────────────────────

func (a *api) createLeaderboard(w http.ResponseWriter, r *http.Request) {
	var dto leaderboardDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created, err := a.engine.CreateLeaderboard(r.Context(), dto.toDomain())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toLeaderboardDTO(created))
}

func (a *api) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.engine.GetLeaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toLeaderboardDTO(lb))
}

func (a *api) updateLeaderboard(w http.ResponseWriter, r *http.Request) {
	var dto leaderboardDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	dto.ID = r.PathValue("id")
	updated, err := a.engine.UpdateLeaderboard(r.Context(), dto.toDomain())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toLeaderboardDTO(updated))
}

func (a *api) deleteLeaderboard(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteLeaderboard(r.Context(), r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getEntries(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := a.engine.GetEntries(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		a.writeError(w, err)
		return
	}
	dtos := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	a.writeJSON(w, http.StatusOK, dtos)
}

func (a *api) submitEntry(w http.ResponseWriter, r *http.Request) {
	var dto entryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	dto.LeaderboardID = r.PathValue("id")
	entry, err := a.engine.SubmitEntry(r.Context(), dto.toDomain())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

func (a *api) updateEntry(w http.ResponseWriter, r *http.Request) {
	var dto entryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	dto.LeaderboardID = r.PathValue("id")
	dto.ID = r.PathValue("entryID")
	entry, err := a.engine.UpdateEntry(r.Context(), dto.toDomain())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

func (a *api) updateLivePosition(w http.ResponseWriter, r *http.Request) {
	var req livePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !a.flags.IsEnabled(config.FeatureLiveProjection, req.PlayerID) {
		http.Error(w, "live projection is not enabled", http.StatusForbidden)
		return
	}
	estimate, err := a.engine.UpdateLivePosition(
		r.Context(), r.PathValue("id"), req.PlayerID, req.CurrentScore, req.HolesCompleted)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, estimate)
}

func (a *api) getCourseLeaderboards(w http.ResponseWriter, r *http.Request) {
	boards, err := a.engine.GetLeaderboards(r.Context(), r.PathValue("courseID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toLeaderboardDTOs(boards))
}

func (a *api) getTournamentLeaderboards(w http.ResponseWriter, r *http.Request) {
	boards, err := a.engine.GetTournamentLeaderboards(r.Context(), r.PathValue("tournamentID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toLeaderboardDTOs(boards))
}

func (a *api) getFriendsLeaderboards(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("playerID")
	if !a.flags.IsEnabled(config.FeatureFriendsBoards, playerID) {
		http.Error(w, "friends leaderboards are not enabled", http.StatusForbidden)
		return
	}
	boards, err := a.engine.GetFriendsLeaderboards(r.Context(), playerID, r.URL.Query().Get("course_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toLeaderboardDTOs(boards))
}

func (a *api) getOverallLeaderboards(w http.ResponseWriter, r *http.Request) {
	period := leaderboard.Period(r.URL.Query().Get("period"))
	boards, err := a.engine.GetOverallLeaderboards(r.Context(), r.URL.Query().Get("course_id"), period)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toLeaderboardDTOs(boards))
}

func (a *api) getMetrics(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.engine.Report())
}

// ──────────────────────────────────────────────────────────────────────────────
// RESPONSE HELPERS
// ──────────────────────────────────────────────────────────────────────────────

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("response encoding failed", logger.Err(err))
	}
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case shared.IsNotFound(err):
		status = http.StatusNotFound
	case shared.IsValidation(err):
		status = http.StatusBadRequest
	case shared.IsDependencyUnavailable(err):
		status = http.StatusServiceUnavailable
	case shared.IsFetchFailed(err), shared.IsWriteFailed(err):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
