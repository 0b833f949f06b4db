package api

import "github.com/shaun/assetsync/internal/sync"

// AssetRequest names one asset of the last sync by repository and remote path.
type AssetRequest struct {
	Repo       string `json:"repo"`
	RemotePath string `json:"remotePath"`
}

type DownloadAllRequest struct {
	Repo string `json:"repo,omitempty"`
}

type SyncResponse struct {
	Results []sync.SyncResult `json:"results"`
	Updates int               `json:"updates"`
}

// AssetView is an asset with a link to its remote copy.
type AssetView struct {
	sync.Asset
	HTMLURL string `json:"htmlUrl"`
}

type UpdatesResponse struct {
	Count   int  `json:"count"`
	Syncing bool `json:"syncing"`
}

type UpdateResponse struct {
	Result sync.UpdateResult `json:"result"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string         `json:"error"`
	Kind  sync.ErrorKind `json:"kind,omitempty"`
}

type BulkResponse struct {
	sync.BulkReport
	Error string         `json:"error,omitempty"`
	Kind  sync.ErrorKind `json:"kind,omitempty"`
}
