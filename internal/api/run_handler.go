package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/synapse/internal/domain"
	"github.com/shaiso/synapse/internal/repo"
)

// ContentTypeNDJSON — тип потокового ответа POST /api/v1/runs.
const ContentTypeNDJSON = "application/x-ndjson"

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 64 << 10

// CreateRun запускает run.
// POST /api/v1/runs[?async=true]
//
// По умолчанию run выполняется синхронно, а ответ — NDJSON поток:
// по строке на снимок и завершающая строка {"run": ...}.
// С async=true run ставится в очередь и возвращается 202.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body CreateRunRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(body.UserStory) == "" {
		BadRequest(w, "user_story is required")
		return
	}

	req := body.ToRequest()
	if HandleServiceError(w, h.logger, req.Validate()) {
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		run, err := h.service.Enqueue(r.Context(), req)
		if HandleServiceError(w, h.logger, err) {
			return
		}
		Accepted(w, RunFromDomain(*run))
		return
	}

	w.Header().Set("Content-Type", ContentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	rc := http.NewResponseController(w)

	run, runErr := h.service.Execute(r.Context(), req, func(snap *domain.RunSnapshot) error {
		if err := enc.Encode(SnapshotFromDomain(*snap)); err != nil {
			return err
		}
		return rc.Flush()
	})

	// Заголовки уже отправлены: ошибки сообщаются завершающей строкой
	final := FinalLine{}
	if run != nil {
		resp := RunFromDomain(*run)
		final.Run = &resp
	}
	if runErr != nil {
		final.Error = runErr.Error()
	}
	if err := enc.Encode(final); err != nil {
		h.logger.Debug("failed to write final line", "error", err)
	}
}

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run storage is disabled")
		return
	}

	q := r.URL.Query()
	filter := repo.RunFilter{
		Limit:  parseInt(q.Get("limit"), repo.DefaultListLimit),
		Offset: parseInt(q.Get("offset"), 0),
	}
	if status := q.Get("status"); status != "" {
		filter.Status = domain.RunStatus(strings.ToUpper(status))
		if !filter.Status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
	}
	if filter.Limit < 1 || filter.Offset < 0 {
		BadRequest(w, "limit must be >= 1 and offset >= 0")
		return
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunSummaryFromDomain(run)
	}

	List(w, result, len(result))
}

// ListActiveRuns возвращает runs, выполняющиеся в этом процессе.
// GET /api/v1/runs/active
func (h *Handler) ListActiveRuns(w http.ResponseWriter, r *http.Request) {
	active := h.service.ActiveRuns()
	List(w, active, len(active))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run storage is disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunSnapshots возвращает снимки run по порядку шагов.
// GET /api/v1/runs/{id}/snapshots
func (h *Handler) ListRunSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil || h.snapshots == nil {
		Unavailable(w, "run storage is disabled")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	if _, err := h.runs.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	snaps, err := h.snapshots.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]SnapshotResponse, len(snaps))
	for i, s := range snaps {
		result[i] = SnapshotFromDomain(s)
	}

	List(w, result, len(result))
}

// parseInt парсит строку в int с дефолтным значением для пустой строки.
// Некорректное число возвращает -1, чтобы вызывающий отклонил запрос.
func parseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
