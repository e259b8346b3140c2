package shared

// Task types and queues shared by the API (producer) and the worker.
const (
	TypeLibrarySync = "library:sync"

	QueueSync    = "sync"
	QueueDefault = "default"
)

// LibrarySyncPayload asks the worker to reconcile one platform account.
type LibrarySyncPayload struct {
	UserID         string `json:"userId"`
	Platform       string `json:"platform"`
	PlatformUserID string `json:"platformUserId"`
}
