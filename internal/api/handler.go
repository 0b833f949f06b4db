package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shaun/assetsync/internal/auth"
	"github.com/shaun/assetsync/internal/github"
	"github.com/shaun/assetsync/internal/sync"
)

// Service is the orchestrator surface the API drives. Implemented by
// *sync.Orchestrator; inject a fake in tests.
type Service interface {
	Sync(ctx context.Context) []sync.SyncResult
	Syncing() bool
	AllAssets() []sync.Asset
	BuildTree() []*sync.TreeNode
	UpdateCount() int
	FindAsset(repoID, remotePath string) (sync.Asset, bool)
	Download(ctx context.Context, a sync.Asset) error
	ForceUpdate(ctx context.Context, a sync.Asset) error
	Update(ctx context.Context, a sync.Asset) (sync.UpdateResult, error)
	Skip(ctx context.Context, a sync.Asset) error
	Remove(ctx context.Context, a sync.Asset) error
	DownloadAll(ctx context.Context, repoID string) (sync.BulkReport, error)
	UpdateAll(ctx context.Context) (sync.BulkReport, error)
}

type Handler struct {
	svc      Service
	htmlBase string
	logger   *slog.Logger
}

func NewHandler(svc Service, htmlBase string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, htmlBase: htmlBase, logger: logger}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorStatus(kind sync.ErrorKind) int {
	switch kind {
	case sync.KindAuth:
		return http.StatusUnauthorized
	case sync.KindNotFound:
		return http.StatusNotFound
	case sync.KindRateLimit:
		return http.StatusTooManyRequests
	case sync.KindNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, err error) {
	kind := sync.ClassifyError(err)
	respondJSON(w, errorStatus(kind), ErrorResponse{Error: sync.UserMessage(err), Kind: kind})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	results := h.svc.Sync(r.Context())
	respondJSON(w, http.StatusOK, SyncResponse{Results: results, Updates: h.svc.UpdateCount()})
}

func (h *Handler) Assets(w http.ResponseWriter, r *http.Request) {
	assets := h.svc.AllAssets()
	if status := r.URL.Query().Get("status"); status != "" {
		assets = sync.CollectByStatus(assets, sync.Status(status))
	}
	out := make([]AssetView, len(assets))
	for i, a := range assets {
		out[i] = AssetView{Asset: a, HTMLURL: github.HTMLURL(h.htmlBase, a.Repo, a.RemotePath, a.IsBundle)}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.BuildTree())
}

func (h *Handler) Updates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, UpdatesResponse{Count: h.svc.UpdateCount(), Syncing: h.svc.Syncing()})
}

// asset decodes an AssetRequest and looks it up in the last results.
func (h *Handler) asset(w http.ResponseWriter, r *http.Request) (sync.Asset, bool) {
	var req AssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return sync.Asset{}, false
	}
	if req.Repo == "" || req.RemotePath == "" {
		http.Error(w, "repo, remotePath required", http.StatusBadRequest)
		return sync.Asset{}, false
	}
	a, ok := h.svc.FindAsset(req.Repo, req.RemotePath)
	if !ok {
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "asset not found, run a sync first", Kind: sync.KindNotFound})
		return sync.Asset{}, false
	}
	return a, true
}

func (h *Handler) mutation(name string, op func(context.Context, sync.Asset) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := h.asset(w, r)
		if !ok {
			return
		}
		if err := op(r.Context(), a); err != nil {
			h.logger.Warn(name+" failed", "user", auth.UserFromRequest(r), "repo", a.Repo.ID(), "path", a.RemotePath, "error", err)
			respondError(w, err)
			return
		}
		h.logger.Info(name, "user", auth.UserFromRequest(r), "repo", a.Repo.ID(), "path", a.RemotePath)
		respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	}
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.mutation("download", h.svc.Download)(w, r)
}

func (h *Handler) ForceUpdate(w http.ResponseWriter, r *http.Request) {
	h.mutation("force-update", h.svc.ForceUpdate)(w, r)
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	h.mutation("skip", h.svc.Skip)(w, r)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutation("remove", h.svc.Remove)(w, r)
}

// Update answers 409 when local edits block the update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := h.asset(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Update(r.Context(), a)
	if err != nil {
		respondError(w, err)
		return
	}
	h.logger.Info("update", "user", auth.UserFromRequest(r), "repo", a.Repo.ID(), "path", a.RemotePath, "result", res)
	status := http.StatusOK
	if res == sync.UpdateConflict {
		status = http.StatusConflict
	}
	respondJSON(w, status, UpdateResponse{Result: res})
}

func (h *Handler) DownloadAll(w http.ResponseWriter, r *http.Request) {
	var req DownloadAllRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	report, err := h.svc.DownloadAll(r.Context(), req.Repo)
	h.bulk(w, r, "download-all", report, err)
}

func (h *Handler) UpdateAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.UpdateAll(r.Context())
	h.bulk(w, r, "update-all", report, err)
}

// bulk reports partial failures alongside the counts.
func (h *Handler) bulk(w http.ResponseWriter, r *http.Request, name string, report sync.BulkReport, err error) {
	h.logger.Info(name, "user", auth.UserFromRequest(r), "downloaded", report.Downloaded, "updated", report.Updated, "conflicts", report.Conflicts, "failed", report.Failed)
	if err != nil {
		kind := sync.ClassifyError(err)
		respondJSON(w, errorStatus(kind), BulkResponse{BulkReport: report, Error: sync.UserMessage(err), Kind: kind})
		return
	}
	respondJSON(w, http.StatusOK, BulkResponse{BulkReport: report})
}
