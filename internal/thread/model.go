package thread

import "time"

// Thread binds one user to one conversation thread inside the staff group.
type Thread struct {
	ID            int64     `json:"-"`
	UserID        int64     `json:"user_id"`
	ThreadID      int       `json:"thread_id"`
	Label         string    `json:"label"`
	OriginGroupID int64     `json:"origin_group_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// BelongsTo reports whether the thread was created in groupID. A thread from
// another group is stale and must be rebuilt.
func (t *Thread) BelongsTo(groupID int64) bool {
	return t.OriginGroupID == groupID
}
