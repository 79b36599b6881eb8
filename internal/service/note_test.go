package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/tahmid/notestack/internal/apperror"
	"github.com/tahmid/notestack/internal/auth"
	"github.com/tahmid/notestack/internal/blob"
	"github.com/tahmid/notestack/internal/model"
)

// =========================================================================
// MOCKS
// =========================================================================

// mockNoteRepo implements repository.NoteRepository in memory. The mutex
// matters: the concurrent-delete test hits it from multiple goroutines.
type mockNoteRepo struct {
	mu     sync.Mutex
	notes  map[string]*model.Note
	nextID int

	failCreate error // returned by Create when set
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{notes: make(map[string]*model.Note)}
}

func (m *mockNoteRepo) Create(_ context.Context, note *model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	m.nextID++
	note.ID = fmt.Sprintf("note-%d", m.nextID)
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now
	stored := *note
	m.notes[note.ID] = &stored
	return nil
}

func (m *mockNoteRepo) GetByID(_ context.Context, id string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[id]
	if !ok {
		return nil, apperror.NotFound("note", id)
	}
	result := *note
	return &result, nil
}

func (m *mockNoteRepo) ListByStatus(_ context.Context, status string) ([]model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []model.Note{}
	for _, n := range m.notes {
		if n.Status == status {
			result = append(result, *n)
		}
	}
	return result, nil
}

func (m *mockNoteRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []model.Note{}
	for _, n := range m.notes {
		if n.UploadedBy == ownerID {
			result = append(result, *n)
		}
	}
	return result, nil
}

func (m *mockNoteRepo) SetApproved(_ context.Context, id, adminID string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	note, ok := m.notes[id]
	if !ok {
		return nil, apperror.NotFound("note", id)
	}
	note.Status = model.StatusApproved
	note.ApprovedBy = adminID
	note.UpdatedAt = time.Now()
	result := *note
	return &result, nil
}

func (m *mockNoteRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[id]; !ok {
		return apperror.NotFound("note", id)
	}
	delete(m.notes, id)
	return nil
}

// mockBlobStore implements blob.Store in memory.
type mockBlobStore struct {
	mu      sync.Mutex
	objects map[string]blob.Object

	failPut    error
	failDelete error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string]blob.Object)}
}

func (m *mockBlobStore) Put(_ context.Context, key string, obj blob.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	m.objects[key] = obj
	return nil
}

func (m *mockBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	delete(m.objects, key)
	return nil
}

func (m *mockBlobStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", apperror.Storage("sign", fmt.Errorf("no object at key %s", key))
	}
	return fmt.Sprintf("https://blobs.test/%s?expires=%d", key, int64(ttl.Seconds())), nil
}

func (m *mockBlobStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// =========================================================================
// HELPERS
// =========================================================================

func newTestNoteService(t *testing.T) (*NoteService, *mockNoteRepo, *mockBlobStore) {
	t.Helper()
	repo := newMockNoteRepo()
	blobs := newMockBlobStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewNoteService(repo, blobs, logger)
	return svc, repo, blobs
}

func validCreateParams(ownerID string) CreateParams {
	return CreateParams{
		Title:     "Midterm Notes",
		Course:    "CS 1301",
		Professor: "Jane Smith",
		Semester:  "Fall 2025",
		FileName:  "midterm.pdf",
		FileType:  "application/pdf",
		FileData:  []byte("%PDF-1.4 fake content"),
		OwnerID:   ownerID,
	}
}

func createTestNote(t *testing.T, svc *NoteService, ownerID string) *model.Note {
	t.Helper()
	note, err := svc.Create(context.Background(), validCreateParams(ownerID))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return note
}

func asUser(id string) auth.Identity  { return auth.Identity{UserID: id, Role: model.RoleUser} }
func asAdmin(id string) auth.Identity { return auth.Identity{UserID: id, Role: model.RoleAdmin} }

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestNoteCreate_Success(t *testing.T) {
	svc, _, blobs := newTestNoteService(t)

	note, err := svc.Create(context.Background(), validCreateParams("user-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if note.ID == "" {
		t.Error("expected note to have an ID")
	}
	if note.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", note.Status, model.StatusPending)
	}
	if note.FileKey == "" {
		t.Error("expected a non-empty file key")
	}
	if !blobs.has(note.FileKey) {
		t.Error("blob was not stored under the note's file key")
	}
	if note.FileSize != int64(len("%PDF-1.4 fake content")) {
		t.Errorf("FileSize = %d, want the upload length", note.FileSize)
	}
}

func TestNoteCreate_BlobFailureMeansNoRow(t *testing.T) {
	svc, repo, blobs := newTestNoteService(t)
	blobs.failPut = apperror.Storage("put", errors.New("connection reset"))

	_, err := svc.Create(context.Background(), validCreateParams("user-1"))
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("Create() error = %v, want ErrStorage", err)
	}

	// The blob write failed before any row insert was attempted.
	if len(repo.notes) != 0 {
		t.Errorf("expected no rows after blob failure, got %d", len(repo.notes))
	}
}

func TestNoteCreate_RowFailureCleansUpBlob(t *testing.T) {
	svc, repo, blobs := newTestNoteService(t)
	repo.failCreate = errors.New("disk full")

	_, err := svc.Create(context.Background(), validCreateParams("user-1"))
	if err == nil {
		t.Fatal("Create() should fail when the row insert fails")
	}

	if len(blobs.objects) != 0 {
		t.Errorf("expected blob cleanup after row failure, %d objects remain", len(blobs.objects))
	}
}

func TestNoteCreate_MissingRequiredFields(t *testing.T) {
	svc, _, blobs := newTestNoteService(t)

	mutations := map[string]func(*CreateParams){
		"title":     func(p *CreateParams) { p.Title = "  " },
		"course":    func(p *CreateParams) { p.Course = "" },
		"professor": func(p *CreateParams) { p.Professor = "" },
		"semester":  func(p *CreateParams) { p.Semester = "" },
		"file":      func(p *CreateParams) { p.FileData = nil },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			p := validCreateParams("user-1")
			mutate(&p)

			_, err := svc.Create(context.Background(), p)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}

	// Validation happens before storage: nothing was written.
	if len(blobs.objects) != 0 {
		t.Errorf("validation failures must not write blobs, found %d", len(blobs.objects))
	}
}

func TestNoteCreate_DistinctKeysForSameFilename(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	n1 := createTestNote(t, svc, "user-1")
	n2 := createTestNote(t, svc, "user-1")

	if n1.FileKey == n2.FileKey {
		t.Errorf("two uploads of the same filename share a key: %q", n1.FileKey)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListApproved_FiltersByStatus(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	pending := createTestNote(t, svc, "user-1")
	approved := createTestNote(t, svc, "user-2")
	if _, err := svc.Approve(context.Background(), approved.ID, "admin-1"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	notes, err := svc.ListApproved(context.Background())
	if err != nil {
		t.Fatalf("ListApproved() error = %v", err)
	}

	if len(notes) != 1 {
		t.Fatalf("ListApproved() returned %d notes, want 1", len(notes))
	}
	if notes[0].ID != approved.ID {
		t.Errorf("ListApproved() returned %s, want %s", notes[0].ID, approved.ID)
	}
	for _, n := range notes {
		if n.ID == pending.ID {
			t.Error("ListApproved() must never include a pending note")
		}
	}
}

func TestListByOwner_ReturnsAllStatuses(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	mine := createTestNote(t, svc, "user-1")
	approvedMine := createTestNote(t, svc, "user-1")
	svc.Approve(context.Background(), approvedMine.ID, "admin-1")
	createTestNote(t, svc, "someone-else")

	notes, err := svc.ListByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("ListByOwner() returned %d notes, want 2", len(notes))
	}
	found := map[string]bool{}
	for _, n := range notes {
		found[n.ID] = true
	}
	if !found[mine.ID] || !found[approvedMine.ID] {
		t.Error("ListByOwner() missing one of the owner's notes")
	}
}

func TestListPending_ExcludesApproved(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	pending := createTestNote(t, svc, "user-1")
	approved := createTestNote(t, svc, "user-1")
	svc.Approve(context.Background(), approved.ID, "admin-1")

	notes, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(notes) != 1 || notes[0].ID != pending.ID {
		t.Errorf("ListPending() = %v, want only %s", notes, pending.ID)
	}
}

// =========================================================================
// APPROVE TESTS
// =========================================================================

func TestApprove_SetsStatusAndApprover(t *testing.T) {
	svc, _, _ := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	approved, err := svc.Approve(context.Background(), note.ID, "admin-1")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("Status = %q, want %q", approved.Status, model.StatusApproved)
	}
	if approved.ApprovedBy != "admin-1" {
		t.Errorf("ApprovedBy = %q, want %q", approved.ApprovedBy, "admin-1")
	}
}

func TestApprove_IdempotentLastWriteWins(t *testing.T) {
	svc, _, _ := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	if _, err := svc.Approve(context.Background(), note.ID, "admin-1"); err != nil {
		t.Fatalf("first Approve() error = %v", err)
	}
	second, err := svc.Approve(context.Background(), note.ID, "admin-2")
	if err != nil {
		t.Fatalf("second Approve() error = %v", err)
	}

	if second.Status != model.StatusApproved {
		t.Errorf("Status = %q, want %q", second.Status, model.StatusApproved)
	}
	if second.ApprovedBy != "admin-2" {
		t.Errorf("ApprovedBy = %q, want the second admin recorded", second.ApprovedBy)
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.Approve(context.Background(), "missing-note", "admin-1")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Approve() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REJECT TESTS
// =========================================================================

func TestReject_RemovesRowAndBlob(t *testing.T) {
	svc, _, blobs := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	rejected, err := svc.Reject(context.Background(), note.ID, "admin-1")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	// Synthesized value: looks rejected, backed by nothing.
	if rejected.Status != model.StatusRejected {
		t.Errorf("Status = %q, want %q", rejected.Status, model.StatusRejected)
	}
	if rejected.ApprovedBy != "admin-1" {
		t.Errorf("ApprovedBy = %q, want the rejecting admin", rejected.ApprovedBy)
	}

	if _, err := svc.GetByID(context.Background(), note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after reject = %v, want ErrNotFound", err)
	}
	if blobs.has(note.FileKey) {
		t.Error("blob must be gone after reject")
	}
}

func TestReject_NotFound(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.Reject(context.Background(), "missing-note", "admin-1")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Reject() error = %v, want ErrNotFound", err)
	}
}

func TestReject_BlobFailureLeavesRow(t *testing.T) {
	svc, _, blobs := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")
	blobs.failDelete = apperror.Storage("delete", errors.New("transport down"))

	_, err := svc.Reject(context.Background(), note.ID, "admin-1")
	if !errors.Is(err, apperror.ErrStorage) {
		t.Fatalf("Reject() error = %v, want ErrStorage", err)
	}

	// Blob deletion failed before the row delete, so the note survives.
	if _, err := svc.GetByID(context.Background(), note.ID); err != nil {
		t.Errorf("note should still exist after failed blob delete: %v", err)
	}
}

// =========================================================================
// GETBYID TESTS
// =========================================================================

func TestGetByID_ReturnsFreshSignedURL(t *testing.T) {
	svc, _, _ := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	got, err := svc.GetByID(context.Background(), note.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FileURL == "" {
		t.Error("GetByID() returned no signed URL")
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, model.StatusPending)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.GetByID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete_OwnerRemovesRowAndBlob(t *testing.T) {
	svc, _, blobs := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	deleted, err := svc.Delete(context.Background(), note.ID, asUser("user-1"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.ID != note.ID {
		t.Errorf("Delete() returned %s, want %s", deleted.ID, note.ID)
	}

	if _, err := svc.GetByID(context.Background(), note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}
	if blobs.has(note.FileKey) {
		t.Error("blob must be gone after owner delete")
	}
}

func TestDelete_NonOwnerUnauthorizedAndUntouched(t *testing.T) {
	svc, _, blobs := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	_, err := svc.Delete(context.Background(), note.ID, asUser("user-2"))
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Delete() error = %v, want ErrUnauthorized", err)
	}

	// Note and blob unchanged.
	if _, err := svc.GetByID(context.Background(), note.ID); err != nil {
		t.Errorf("note should survive an unauthorized delete: %v", err)
	}
	if !blobs.has(note.FileKey) {
		t.Error("blob should survive an unauthorized delete")
	}
}

func TestDelete_AdminOverride(t *testing.T) {
	svc, _, _ := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	if _, err := svc.Delete(context.Background(), note.ID, asAdmin("admin-1")); err != nil {
		t.Fatalf("Delete() by admin error = %v", err)
	}

	if _, err := svc.GetByID(context.Background(), note.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("admin delete should remove the note")
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _, _ := newTestNoteService(t)

	_, err := svc.Delete(context.Background(), "missing", asUser("user-1"))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_ConcurrentSingleWinner(t *testing.T) {
	svc, _, _ := newTestNoteService(t)
	note := createTestNote(t, svc, "user-1")

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Delete(context.Background(), note.ID, asUser("user-1"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, notFounds := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperror.ErrNotFound):
			notFounds++
		default:
			t.Errorf("unexpected error from concurrent delete: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("concurrent deletes: %d winners, want exactly 1", wins)
	}
	if wins+notFounds != racers {
		t.Errorf("wins+notFounds = %d, want %d", wins+notFounds, racers)
	}
}
