package api

// Notebook session statuses as reported by the server.
const (
	StatusStarting  = "starting"
	StatusRunning   = "running"
	StatusStopping  = "stopping"
	StatusStopped   = "stopped"
	StatusCrashed   = "crashed"
	StatusUnhealthy = "unhealthy"
)

// NotebookFile is a persistent notebook definition. Identity is the
// filename; it is server-owned and only mutated through round-trips.
type NotebookFile struct {
	Filename   string  `json:"filename"`
	Path       string  `json:"path"`
	SizeBytes  int64   `json:"size_bytes"`
	ModifiedAt float64 `json:"modified_at"`
}

// Session is an ephemeral compute session. NotebookPath is a plain string,
// not a guaranteed foreign key into the notebook collection.
type Session struct {
	SessionID    string `json:"session_id"`
	TenantID     string `json:"tenant_id"`
	NotebookPath string `json:"notebook_path"`
	Port         int    `json:"port"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	LastAccessed string `json:"last_accessed"`
	PID          *int   `json:"pid"`
	IsAlive      bool   `json:"is_alive"`
}

// Active reports whether the session counts as running for filtering.
func (s Session) Active() bool { return s.Status == StatusRunning }

// CreateSessionResponse is returned by POST /notebooks/sessions.
type CreateSessionResponse struct {
	SessionID    string `json:"session_id"`
	NotebookPath string `json:"notebook_path"`
	Port         int    `json:"port"`
	WSURL        string `json:"ws_url"`
	UIURL        string `json:"ui_url"`
	Status       string `json:"status"`
}

// ServiceStatus is returned by GET /notebooks/status.
type ServiceStatus struct {
	Enabled          bool           `json:"enabled"`
	ActiveSessions   int            `json:"active_sessions"`
	MaxSessions      int            `json:"max_sessions"`
	AvailablePorts   int            `json:"available_ports"`
	SessionsByStatus map[string]int `json:"sessions_by_status"`
}

// AccountInfo is returned by GET /api/accounts/me.
type AccountInfo struct {
	AccountID            string `json:"account_id"`
	Name                 string `json:"name"`
	StorageBackend       string `json:"storage_backend"`
	MaxStorageGB         int    `json:"max_storage_gb"`
	MaxQueryMemoryGB     int    `json:"max_query_memory_gb"`
	MaxConcurrentQueries int    `json:"max_concurrent_queries"`
	CreatedAt            string `json:"created_at"`
	Status               string `json:"status"`
}

// APIKeyInfo is a masked key listing entry.
type APIKeyInfo struct {
	KeyID       string  `json:"key_id"`
	KeyPreview  string  `json:"key_preview"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
	LastUsed    *string `json:"last_used"`
	ExpiresAt   *string `json:"expires_at"`
}

// CreateAPIKeyResponse carries the full key, shown only once.
type CreateAPIKeyResponse struct {
	KeyID       string  `json:"key_id"`
	APIKey      string  `json:"api_key"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at"`
	ExpiresAt   *string `json:"expires_at"`
	Warning     string  `json:"warning"`
}

// UserInfo and TenantInfo come back from POST /api/auth/login.
type UserInfo struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

type TenantInfo struct {
	AccountID            string `json:"account_id"`
	Name                 string `json:"name"`
	StorageBackend       string `json:"storage_backend"`
	MaxStorageGB         int    `json:"max_storage_gb"`
	MaxQueryMemoryGB     int    `json:"max_query_memory_gb"`
	MaxConcurrentQueries int    `json:"max_concurrent_queries"`
}

type LoginResponse struct {
	User   UserInfo   `json:"user"`
	Tenant TenantInfo `json:"tenant"`
}

// MeResponse is returned by GET /api/auth/me.
type MeResponse struct {
	TenantID string           `json:"tenant_id"`
	APIKeys  []map[string]any `json:"api_keys"`
	Quotas   map[string]any   `json:"quotas"`
}

// QueryResult is returned by POST /api/query.
type QueryResult struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
}

// UploadResult is returned by POST /api/upload.
type UploadResult struct {
	Status    string `json:"status"`
	Dataset   string `json:"dataset"`
	File      string `json:"file"`
	SizeBytes int64  `json:"size_bytes"`
	RowCount  int    `json:"row_count"`
}
