package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DispatchStats mirrors the dispatcher counters.
type DispatchStats struct {
	Dispatched int64 `json:"dispatched"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Skipped    int64 `json:"skipped"`
	Panics     int64 `json:"panics"`
	Running    int64 `json:"running"`
}

// StoreStats mirrors the relational store row counts.
type StoreStats struct {
	Records   int `json:"records"`
	InLibrary int `json:"inLibrary"`
	Children  int `json:"children"`
	Actors    int `json:"actors"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Review    int `json:"review"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool          `json:"running"`
	PID            int           `json:"pid"`
	StartedAt      string        `json:"startedAt,omitempty"`
	DatabasePath   string        `json:"databasePath"`
	LockFilePath   string        `json:"lockFilePath"`
	OverrideRoot   string        `json:"overrideRoot"`
	PendingKeys    int           `json:"pendingKeys"`
	AdvisoryKeys   int           `json:"advisoryKeys"`
	Dispatch       DispatchStats `json:"dispatch"`
	Store          StoreStats    `json:"store"`
	StoreError     string        `json:"storeError,omitempty"`
	ScanInProgress bool          `json:"scanInProgress"`
}

// ReviewItem is one review queue row.
type ReviewItem struct {
	Key         string  `json:"key"`
	ItemType    string  `json:"itemType"`
	ExternalID  string  `json:"externalId"`
	DisplayName string  `json:"displayName"`
	Reason      string  `json:"reason"`
	Score       float64 `json:"score"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// ReviewListResponse wraps the review queue.
type ReviewListResponse struct {
	Items []ReviewItem `json:"items"`
}

// ReviewClearResponse reports whether a review row was removed.
type ReviewClearResponse struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed"`
}

// ReprocessResponse acknowledges a manually dispatched work item.
type ReprocessResponse struct {
	HostItemID  string `json:"hostItemId"`
	ItemType    string `json:"itemType"`
	DisplayName string `json:"displayName"`
	Deep        bool   `json:"deep"`
}

// ScanResponse acknowledges a library scan request.
type ScanResponse struct {
	Started bool   `json:"started"`
	Deep    bool   `json:"deep"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
