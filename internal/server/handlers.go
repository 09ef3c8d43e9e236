package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/ronbun/internal/arxiv"
	"github.com/hyperjump/ronbun/internal/models"
	"go.uber.org/zap"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     statusSuccess,
		"categories": arxiv.Categories(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := models.SearchQuery{
		Query:      params.Get("query"),
		Categories: listParam(params, "categories"),
		Sort:       models.SortKey(params.Get("sort")),
	}
	var err error
	if query.MaxResults, err = intParam(params, "max_results"); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.SinceDays, err = intParam(params, "since_days"); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.UseJapaneseSummary, err = boolParam(params, "use_japanese_summary"); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Strings("categories", query.Categories))
	papers, err := s.service.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  statusSuccess,
		"message": fmt.Sprintf("%d件の論文が見つかりました", len(papers)),
		"papers":  papers,
	})
}

type watchedKeywordsResponse struct {
	Keywords   []string                `json:"keywords"`
	Categories []string                `json:"categories"`
	Entries    []models.WatchedKeyword `json:"entries"`
}

func (s *Server) handleWatchList(w http.ResponseWriter, r *http.Request) {
	entries := s.keywords.List()
	resp := watchedKeywordsResponse{
		Keywords:   make([]string, 0, len(entries)),
		Categories: []string{},
		Entries:    entries,
	}
	var cats []string
	for _, kw := range entries {
		resp.Keywords = append(resp.Keywords, kw.Keyword)
		cats = append(cats, kw.Categories...)
	}
	if norm := models.NormalizeCategories(cats); norm != nil {
		resp.Categories = norm
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":           statusSuccess,
		"watched_keywords": resp,
	})
}

type watchAddRequest struct {
	Keyword    string   `json:"keyword"`
	Categories []string `json:"categories,omitempty"`
}

func (s *Server) handleWatchAdd(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := watchAddRequest{
		Keyword:    params.Get("keyword"),
		Categories: listParam(params, "categories"),
	}
	if req.Keyword == "" && r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	s.logger.Debug("watch add request", zap.String("keyword", req.Keyword), zap.Strings("categories", req.Categories))
	kw, err := s.keywords.Add(r.Context(), req.Keyword, req.Categories)
	if err != nil {
		s.logger.Warn("watch add failed", zap.String("keyword", req.Keyword), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  statusSuccess,
		"message": fmt.Sprintf("キーワード '%s' を監視リストに追加しました", kw.Keyword),
		"keyword": kw,
	})
}

func (s *Server) handleWatchRemove(w http.ResponseWriter, r *http.Request) {
	keyword := chi.URLParam(r, "keyword")
	// chi routes on RawPath when it is set, leaving the parameter escaped
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(keyword); err == nil {
			keyword = unescaped
		}
	}
	s.logger.Debug("watch remove request", zap.String("keyword", keyword))
	if err := s.keywords.Remove(r.Context(), keyword); err != nil {
		s.logger.Warn("watch remove failed", zap.String("keyword", keyword), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": fmt.Sprintf("キーワード '%s' を監視リストから削除しました", strings.TrimSpace(keyword)),
	})
}

func (s *Server) handleNewPapers(w http.ResponseWriter, r *http.Request) {
	useJA, err := boolParam(r.URL.Query(), "use_japanese_summary")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.service.CheckNewPapers(r.Context(), useJA)
	if err != nil {
		s.logger.Error("new paper check failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	message := "新着論文はありません"
	if n := len(result.Papers); n > 0 {
		message = fmt.Sprintf("%d件の新着論文が見つかりました", n)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         statusSuccess,
		"message":        message,
		"papers":         result.Papers,
		"grouped_papers": result.Grouped,
		"run_id":         result.RunID,
	})
}

func (s *Server) handleSaveEmailConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.EmailConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.service.SaveEmailConfig(r.Context(), &cfg); err != nil {
		s.logger.Warn("email config rejected", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": "メール設定を保存しました",
	})
}

func (s *Server) handleGetEmailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.EmailConfig(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": statusSuccess,
		"config": cfg,
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.service.Pause()
	s.respondProcessing(w, "処理を一時停止しました")
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.service.Resume()
	s.respondProcessing(w, "処理を再開しました")
}

func (s *Server) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	message := "一時停止中"
	if s.service.IsProcessing() {
		message = "処理中"
	}
	s.respondProcessing(w, message)
}

func (s *Server) respondProcessing(w http.ResponseWriter, message string) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        statusSuccess,
		"is_processing": s.service.IsProcessing(),
		"message":       message,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(r.Context(), s.dbPath)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": statusSuccess,
		"stats":  st,
	})
}

func listParam(values url.Values, name string) []string {
	var out []string
	for _, v := range values[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intParam(values url.Values, name string) (int, error) {
	v := strings.TrimSpace(values.Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func boolParam(values url.Values, name string) (bool, error) {
	v := strings.TrimSpace(values.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateKeyword):
		return http.StatusConflict
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"status": statusError, "message": message})
}
