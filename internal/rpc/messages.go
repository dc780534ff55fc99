package rpc

import (
	"encoding/json"
	"time"
)

// Record is an encrypted envelope as stored by the server.
type Record struct {
	ID              string          `json:"id,omitempty"`
	Key             string          `json:"key"`
	KeyID           string          `json:"key_id"`
	Ciphertext      []byte          `json:"ciphertext"`
	Nonce           []byte          `json:"nonce"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Revision        int64           `json:"revision"`
	ServerUpdatedAt *time.Time      `json:"server_updated_at,omitempty"`
	Deleted         bool            `json:"deleted"`
	Attributes      json.RawMessage `json:"attributes,omitempty"`
}

type PingRequest struct{}

type PingResponse struct {
	ServerTime time.Time `json:"server_time"`
}

type FetchByKeyRequest struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
}

type FetchByKeyResponse struct {
	// Record is nil if the key is unknown.
	Record *Record `json:"record,omitempty"`
}

type FetchIndexRequest struct {
	Collection string `json:"collection"`
	Year       int    `json:"year"`
}

type FetchIndexResponse struct {
	Keys []string `json:"keys"`
}

type FetchChangesRequest struct {
	Collection string  `json:"collection"`
	Cursor     *string `json:"cursor,omitempty"`
	Limit      int     `json:"limit,omitempty"`
}

type FetchChangesResponse struct {
	Records []*Record `json:"records"`
	// More is set when the page was truncated at Limit.
	More bool `json:"more"`
}

type PushRequest struct {
	Collection string  `json:"collection"`
	Record     *Record `json:"record"`
}

type PushResponse struct {
	Record *Record `json:"record"`
}

type DeleteRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id,omitempty"`
	Key        string `json:"key"`
}

type DeleteResponse struct{}

type PresignUploadRequest struct{}

type PresignUploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

type PresignDownloadRequest struct {
	Path string `json:"path"`
}

type PresignDownloadResponse struct {
	URL string `json:"url"`
}

type DeleteBlobRequest struct {
	Path string `json:"path"`
}

type DeleteBlobResponse struct{}
