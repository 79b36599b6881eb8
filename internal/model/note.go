package model

import "time"

// Moderation statuses. A note starts pending and either becomes approved or
// is rejected. Rejection is destructive: the row and its blob are removed, so
// StatusRejected only ever appears on the synthesized value returned to the
// rejecting admin — never on a stored row.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Note represents an uploaded study document.
//
// The file bytes themselves live in the blob store under FileKey; the row
// only carries the key plus the original upload metadata. FileKey is unique
// and non-empty for every stored row.
//
// ApprovedBy is the ID of the admin who approved the note, set only when
// Status is approved (empty otherwise).
type Note struct {
	ID          string    `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Course      string    `json:"course"      db:"course"`
	Professor   string    `json:"professor"   db:"professor"`
	Semester    string    `json:"semester"    db:"semester"`
	Description string    `json:"description" db:"description"`
	FileKey     string    `json:"-"           db:"file_key"` // blob store key — internal
	FileName    string    `json:"fileName"    db:"file_name"`
	FileSize    int64     `json:"fileSize"    db:"file_size"`
	FileType    string    `json:"fileType"    db:"file_type"`
	Status      string    `json:"status"      db:"status"`
	UploadedBy  string    `json:"uploadedBy"  db:"uploaded_by"`
	ApprovedBy  string    `json:"approvedBy,omitempty" db:"approved_by"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}
