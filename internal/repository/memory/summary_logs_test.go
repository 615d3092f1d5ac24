package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

func newLog(status domain.Status) domain.SummaryLog {
	return domain.SummaryLog{
		Status:         status,
		OrganisationID: "org-1",
		RegistrationID: "reg-1",
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSummaryLogsInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()

	if err := repo.Insert(ctx, "log-1", newLog(domain.StatusPreprocessing)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := repo.Insert(ctx, "log-1", newLog(domain.StatusPreprocessing)); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	found, err := repo.FindByID(ctx, "log-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if found.Version != 1 || found.SummaryLog.ID != "log-1" {
		t.Fatalf("unexpected stored log: %+v", found)
	}

	missing, err := repo.FindByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing log, got %+v, %v", missing, err)
	}
}

func TestSummaryLogsUpdateWithStaleVersionLeavesDocumentUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()
	if err := repo.Insert(ctx, "log-1", newLog(domain.StatusPreprocessing)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	before, _ := repo.FindByID(ctx, "log-1")

	for _, stale := range []int{0, 2, 99} {
		err := repo.Update(ctx, "log-1", stale, domain.Patch{
			Status:        domain.StatusPtr(domain.StatusValidating),
			FailureReason: domain.StringPtr("should not land"),
		})
		if !errors.Is(err, repository.ErrVersionConflict) {
			t.Fatalf("version %d: expected ErrVersionConflict, got %v", stale, err)
		}
	}

	after, _ := repo.FindByID(ctx, "log-1")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("document changed after conflicting updates (-before +after):\n%s", diff)
	}

	if err := repo.Update(ctx, "missing", 1, domain.Patch{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSummaryLogsUpdateIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()
	_ = repo.Insert(ctx, "log-1", newLog(domain.StatusPreprocessing))

	if err := repo.Update(ctx, "log-1", 1, domain.Patch{Status: domain.StatusPtr(domain.StatusValidating)}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	found, _ := repo.FindByID(ctx, "log-1")
	if found.Version != 2 || found.SummaryLog.Status != domain.StatusValidating {
		t.Fatalf("unexpected state after update: %+v", found)
	}
}

func TestSummaryLogsReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()
	log := newLog(domain.StatusPreprocessing)
	log.File = &domain.File{ID: "file-1", Name: "a.xlsx"}
	_ = repo.Insert(ctx, "log-1", log)

	found, _ := repo.FindByID(ctx, "log-1")
	found.SummaryLog.File.Name = "mutated.xlsx"

	again, _ := repo.FindByID(ctx, "log-1")
	if again.SummaryLog.File.Name != "a.xlsx" {
		t.Fatalf("stored document was mutated through a read: %q", again.SummaryLog.File.Name)
	}
}

func TestTransitionToSubmittingExclusiveAllowsOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()
	ids := []string{"log-1", "log-2", "log-3", "log-4"}
	for _, id := range ids {
		_ = repo.Insert(ctx, id, newLog(domain.StatusValidated))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result, err := repo.TransitionToSubmittingExclusive(ctx, id)
			if err != nil {
				t.Errorf("transition %s failed: %v", id, err)
				return
			}
			if result.Success {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
	has, _ := repo.HasSubmittingLog(ctx, "org-1", "reg-1")
	if !has {
		t.Fatalf("expected a submitting log")
	}
}

func TestTransitionToSubmittingExclusiveRejectsWrongStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()
	_ = repo.Insert(ctx, "log-1", newLog(domain.StatusInvalid))

	_, err := repo.TransitionToSubmittingExclusive(ctx, "log-1")
	var transitionErr *domain.TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}

	found, _ := repo.FindByID(ctx, "log-1")
	if found.Version != 1 || found.SummaryLog.Status != domain.StatusInvalid {
		t.Fatalf("log mutated by rejected transition: %+v", found)
	}
}

func TestSupersedePendingLogs(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()
	statuses := map[string]domain.Status{
		"pre":       domain.StatusPreprocessing,
		"validated": domain.StatusValidated,
		"invalid":   domain.StatusInvalid,
		"submitted": domain.StatusSubmitted,
		"current":   domain.StatusValidating,
	}
	for id, status := range statuses {
		_ = repo.Insert(ctx, id, newLog(status))
	}
	other := newLog(domain.StatusValidated)
	other.RegistrationID = "reg-2"
	_ = repo.Insert(ctx, "other-reg", other)

	count, err := repo.SupersedePendingLogs(ctx, "org-1", "reg-1", "current")
	if err != nil {
		t.Fatalf("supersede failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 superseded logs, got %d", count)
	}

	want := map[string]domain.Status{
		"pre":       domain.StatusSuperseded,
		"validated": domain.StatusSuperseded,
		"invalid":   domain.StatusSuperseded,
		"submitted": domain.StatusSubmitted,
		"current":   domain.StatusValidating,
		"other-reg": domain.StatusValidated,
	}
	for id, status := range want {
		found, _ := repo.FindByID(ctx, id)
		if found.SummaryLog.Status != status {
			t.Fatalf("%s: expected %s, got %s", id, status, found.SummaryLog.Status)
		}
	}
}

func TestFindLatestSubmittedForOrgReg(t *testing.T) {
	ctx := context.Background()
	repo := NewSummaryLogs()

	latest, err := repo.FindLatestSubmittedForOrgReg(ctx, "org-1", "reg-1")
	if err != nil || latest != nil {
		t.Fatalf("expected no submitted log, got %+v, %v", latest, err)
	}

	for i, day := range []int{3, 10, 5} {
		log := newLog(domain.StatusSubmitted)
		at := time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
		log.SubmittedAt = &at
		_ = repo.Insert(ctx, []string{"a", "b", "c"}[i], log)
	}

	latest, err = repo.FindLatestSubmittedForOrgReg(ctx, "org-1", "reg-1")
	if err != nil {
		t.Fatalf("find latest failed: %v", err)
	}
	if latest == nil || latest.ID != "b" {
		t.Fatalf("expected log b, got %+v", latest)
	}
}
