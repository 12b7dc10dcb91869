package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	pubmock "github.com/devesh1011/vyloc-backend-api/internal/publisher/mock"
	"github.com/devesh1011/vyloc-backend-api/internal/repository/mock"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

const maxImageBytes = 10 << 20

// fakeRunner is a test double for the pipeline runner.
type fakeRunner struct {
	mu    sync.Mutex
	RunFn func(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error)
	Calls int
}

func (f *fakeRunner) Run(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()
	if f.RunFn != nil {
		return f.RunFn(ctx, job, image)
	}
	images := make([]domain.TargetResult, 0, len(job.Targets))
	for _, target := range job.Targets {
		images = append(images, domain.TargetResult{
			Language: target.Language,
			Market:   target.Market,
			Status:   domain.TargetCompleted,
			ImageURL: "https://storage.test/" + string(target.Language) + ".png",
		})
	}
	return &domain.JobResult{
		JobID:       job.JobID,
		Status:      domain.StatusCompleted,
		Images:      images,
		CreditsUsed: len(images),
		CompletedAt: time.Now().UTC(),
	}, nil
}

func newSubmitRequest() *domain.SubmitRequest {
	return &domain.SubmitRequest{
		OwnerID:        "owner-1",
		Targets:        []domain.Target{{Language: domain.LangHindi}, {Language: domain.LangJapanese}},
		SourceLanguage: "english",
		ContentType:    "image/png",
		Image:          []byte("source-image"),
	}
}

func newStatusStore() status.Store {
	return status.NewMemoryStore(status.NewMemoryChannel())
}

// ---- SubmitJob ----

func TestSubmit_Success(t *testing.T) {
	repo := &mock.JobRepository{}
	ledger := &mock.Ledger{}
	pub := pubmock.NewMockPublisher()
	statuses := newStatusStore()

	uc := usecase.NewSubmitJobUsecase(repo, ledger, pub, statuses, maxImageBytes, zap.NewNop())
	resp, err := uc.Execute(context.Background(), newSubmitRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != domain.StatusQueued {
		t.Errorf("expected queued status, got %s", resp.Status)
	}
	if resp.Channel != "/ws/jobs/"+resp.JobID.String() {
		t.Errorf("unexpected channel path: %s", resp.Channel)
	}
	if len(repo.Created) != 1 {
		t.Fatalf("expected 1 created job, got %d", len(repo.Created))
	}
	if len(pub.Published) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(pub.Published))
	}
	if pub.Published[0].JobID != resp.JobID {
		t.Error("published job ID mismatch")
	}

	// Snapshot seeded for late-free subscription.
	evt, err := statuses.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("expected seeded snapshot: %v", err)
	}
	if evt.Status != domain.StatusQueued {
		t.Errorf("expected queued snapshot, got %s", evt.Status)
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.SubmitRequest)
		wantErr error
	}{
		{"no targets", func(r *domain.SubmitRequest) { r.Targets = nil }, domain.ErrNoTargets},
		{"too many targets", func(r *domain.SubmitRequest) {
			r.Targets = make([]domain.Target, 11)
			for i := range r.Targets {
				r.Targets[i] = domain.Target{Language: domain.LangHindi}
			}
		}, domain.ErrTooManyTargets},
		{"invalid language", func(r *domain.SubmitRequest) { r.Targets[0].Language = "klingon" }, domain.ErrInvalidLanguage},
		{"invalid market", func(r *domain.SubmitRequest) { r.Targets[0].Market = "atlantis" }, domain.ErrInvalidMarket},
		{"invalid image size", func(r *domain.SubmitRequest) { r.Targets[0].ImageSize = "8K" }, domain.ErrInvalidImageSize},
		{"invalid aspect ratio", func(r *domain.SubmitRequest) { r.Targets[0].AspectRatio = "7:5" }, domain.ErrInvalidAspectRatio},
		{"unsupported format", func(r *domain.SubmitRequest) { r.ContentType = "image/tiff" }, domain.ErrUnsupportedFormat},
		{"empty image", func(r *domain.SubmitRequest) { r.Image = nil }, domain.ErrEmptyImage},
		{"image too large", func(r *domain.SubmitRequest) { r.Image = make([]byte, maxImageBytes+1) }, domain.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mock.JobRepository{}
			pub := pubmock.NewMockPublisher()
			uc := usecase.NewSubmitJobUsecase(repo, &mock.Ledger{}, pub, newStatusStore(), maxImageBytes, zap.NewNop())

			req := newSubmitRequest()
			tt.mutate(req)

			_, err := uc.Execute(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(repo.Created) != 0 || len(pub.Published) != 0 {
				t.Error("rejected submission must not persist or publish")
			}
		})
	}
}

func TestSubmit_InsufficientCredits(t *testing.T) {
	repo := &mock.JobRepository{}
	ledger := &mock.Ledger{
		CheckEligibleFn: func(ctx context.Context, ownerID string, required int) error {
			if required != 2 {
				t.Errorf("expected 2 required credits, got %d", required)
			}
			return domain.ErrInsufficientCredits
		},
	}
	pub := pubmock.NewMockPublisher()
	uc := usecase.NewSubmitJobUsecase(repo, ledger, pub, newStatusStore(), maxImageBytes, zap.NewNop())

	_, err := uc.Execute(context.Background(), newSubmitRequest())
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if len(repo.Created) != 0 {
		t.Error("ineligible submission must not be persisted")
	}
}

func TestSubmit_PublishFailureMarksJobFailed(t *testing.T) {
	repo := &mock.JobRepository{}
	pub := pubmock.NewMockPublisher()
	pub.PublishFn = func(ctx context.Context, job *domain.Job) error {
		return errors.New("broker unavailable")
	}
	uc := usecase.NewSubmitJobUsecase(repo, &mock.Ledger{}, pub, newStatusStore(), maxImageBytes, zap.NewNop())

	_, err := uc.Execute(context.Background(), newSubmitRequest())
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if len(repo.StatusUpdates) != 1 || repo.StatusUpdates[0].Status != domain.StatusFailed {
		t.Errorf("expected job marked failed, got %+v", repo.StatusUpdates)
	}
}

// ---- ProcessJob ----

func newProcessUsecase(repo *mock.JobRepository, ledger *mock.Ledger, idem *mock.IdempotencyStore, runner *fakeRunner, statuses status.Store) *usecase.ProcessJobUsecase {
	return usecase.NewProcessJobUsecase(repo, ledger, idem, runner, statuses, 3, 5*time.Minute, 6*time.Minute, zap.NewNop())
}

func newJobMessage(attempt int) *domain.JobMessage {
	return &domain.JobMessage{
		Job: &domain.Job{
			JobID:         uuid.New(),
			OwnerID:       "owner-1",
			Targets:       []domain.Target{{Language: domain.LangHindi}, {Language: domain.LangJapanese}},
			ContentType:   "image/png",
			SourcePayload: []byte("img"),
			Status:        domain.StatusQueued,
		},
		Attempt: attempt,
		Ack:     func() error { return nil },
		Nack:    func(requeue bool) error { return nil },
	}
}

func TestProcess_Success(t *testing.T) {
	repo := &mock.JobRepository{}
	ledger := &mock.Ledger{}
	idem := &mock.IdempotencyStore{}
	runner := &fakeRunner{}
	statuses := newStatusStore()

	uc := newProcessUsecase(repo, ledger, idem, runner, statuses)
	msg := newJobMessage(0)

	outcome, err := uc.Execute(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != usecase.OutcomeCompleted {
		t.Fatalf("expected OutcomeCompleted, got %v", outcome)
	}

	if len(repo.StatusUpdates) != 1 || repo.StatusUpdates[0].Status != domain.StatusProcessing {
		t.Errorf("expected processing status update, got %+v", repo.StatusUpdates)
	}
	if len(repo.Results) != 1 {
		t.Fatalf("expected 1 stored result, got %d", len(repo.Results))
	}
	if repo.Results[0].Result.Status != domain.StatusCompleted {
		t.Errorf("expected completed result, got %s", repo.Results[0].Result.Status)
	}

	// Both targets completed: 2 credits, one deduction keyed by the job.
	if ledger.DeductionCount() != 1 {
		t.Fatalf("expected 1 deduction, got %d", ledger.DeductionCount())
	}
	if ledger.Deductions[0].Amount != 2 {
		t.Errorf("expected 2 credits deducted, got %d", ledger.Deductions[0].Amount)
	}
	if ledger.Deductions[0].JobID != msg.Job.JobID {
		t.Error("deduction keyed by wrong job id")
	}

	// Terminal snapshot with the result attached.
	evt, err := statuses.Get(context.Background(), msg.Job.JobID)
	if err != nil {
		t.Fatalf("expected terminal snapshot: %v", err)
	}
	if evt.Status != domain.StatusCompleted || evt.Progress != 100 || evt.Result == nil {
		t.Errorf("unexpected terminal event: %+v", evt)
	}

	if len(idem.AcquireCalls) != 1 || len(idem.ReleaseCalls) != 1 {
		t.Errorf("expected lock acquired and released, got %d/%d", len(idem.AcquireCalls), len(idem.ReleaseCalls))
	}
}

func TestProcess_DuplicateLock(t *testing.T) {
	repo := &mock.JobRepository{}
	idem := &mock.IdempotencyStore{
		AcquireLockFn: func(ctx context.Context, jobID uuid.UUID) (bool, error) {
			return false, nil
		},
	}
	runner := &fakeRunner{}

	uc := newProcessUsecase(repo, &mock.Ledger{}, idem, runner, newStatusStore())
	outcome, err := uc.Execute(context.Background(), newJobMessage(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != usecase.OutcomeDuplicate {
		t.Fatalf("expected OutcomeDuplicate, got %v", outcome)
	}
	if runner.Calls != 0 {
		t.Error("duplicate delivery must not run the pipeline")
	}
}

// A redelivery of an already-terminal job must neither re-run the pipeline
// nor charge the owner again.
func TestProcess_RedeliveryOfTerminalJobDoesNotDoubleCharge(t *testing.T) {
	ledger := &mock.Ledger{}
	runner := &fakeRunner{}
	msg := newJobMessage(0)

	repo := &mock.JobRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
			stored := *msg.Job
			stored.Status = domain.StatusCompleted
			return &stored, nil
		},
	}

	uc := newProcessUsecase(repo, ledger, &mock.IdempotencyStore{}, runner, newStatusStore())
	outcome, err := uc.Execute(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != usecase.OutcomeDuplicate {
		t.Fatalf("expected OutcomeDuplicate, got %v", outcome)
	}
	if runner.Calls != 0 {
		t.Error("terminal job must not be re-run")
	}
	if ledger.DeductionCount() != 0 {
		t.Error("terminal job must not be re-charged")
	}
}

func TestProcess_TransientFailureRetries(t *testing.T) {
	repo := &mock.JobRepository{}
	runner := &fakeRunner{
		RunFn: func(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error) {
			return nil, errors.New("redis connection refused")
		},
	}
	idem := &mock.IdempotencyStore{}

	uc := newProcessUsecase(repo, &mock.Ledger{}, idem, runner, newStatusStore())
	outcome, err := uc.Execute(context.Background(), newJobMessage(1))
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome != usecase.OutcomeRetry {
		t.Fatalf("expected OutcomeRetry, got %v", outcome)
	}
	if len(repo.Results) != 0 {
		t.Error("failed run must not store a result")
	}
	// Lock released so the retried delivery can process.
	if len(idem.ReleaseCalls) != 1 {
		t.Errorf("expected lock release, got %d", len(idem.ReleaseCalls))
	}
}

func TestProcess_RetriesExhaustedFailsTerminally(t *testing.T) {
	repo := &mock.JobRepository{}
	runner := &fakeRunner{
		RunFn: func(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error) {
			return nil, errors.New("model permanently broken")
		},
	}
	statuses := newStatusStore()

	uc := newProcessUsecase(repo, &mock.Ledger{}, &mock.IdempotencyStore{}, runner, statuses)
	msg := newJobMessage(3) // at the ceiling

	outcome, err := uc.Execute(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome != usecase.OutcomeFailed {
		t.Fatalf("expected OutcomeFailed, got %v", outcome)
	}

	// processing + failed
	last := repo.StatusUpdates[len(repo.StatusUpdates)-1]
	if last.Status != domain.StatusFailed {
		t.Errorf("expected final failed status, got %s", last.Status)
	}

	evt, err := statuses.Get(context.Background(), msg.Job.JobID)
	if err != nil {
		t.Fatalf("expected terminal snapshot: %v", err)
	}
	if evt.Status != domain.StatusFailed || evt.Error == "" {
		t.Errorf("unexpected terminal event: %+v", evt)
	}
}

func TestProcess_AllTargetsFailedStillAcks(t *testing.T) {
	repo := &mock.JobRepository{}
	ledger := &mock.Ledger{}
	runner := &fakeRunner{
		RunFn: func(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error) {
			images := make([]domain.TargetResult, 0, len(job.Targets))
			for _, target := range job.Targets {
				images = append(images, domain.TargetResult{
					Language:     target.Language,
					Status:       domain.TargetFailed,
					ErrorMessage: "generation timeout after 2m0s",
				})
			}
			return &domain.JobResult{
				JobID:  job.JobID,
				Status: domain.StatusFailed,
				Images: images,
			}, nil
		},
	}

	uc := newProcessUsecase(repo, ledger, &mock.IdempotencyStore{}, runner, newStatusStore())
	outcome, err := uc.Execute(context.Background(), newJobMessage(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// All targets failing is a settled job, not a queue-level retry.
	if outcome != usecase.OutcomeCompleted {
		t.Fatalf("expected OutcomeCompleted, got %v", outcome)
	}
	if len(repo.Results) != 1 || repo.Results[0].Result.Status != domain.StatusFailed {
		t.Errorf("expected stored failed result, got %+v", repo.Results)
	}
	if ledger.DeductionCount() != 0 {
		t.Error("no completed targets means no charge")
	}
}

// ---- LocalizeSync ----

func TestLocalizeSync_Success(t *testing.T) {
	repo := &mock.JobRepository{}
	ledger := &mock.Ledger{}
	runner := &fakeRunner{}

	uc := usecase.NewLocalizeSyncUsecase(repo, ledger, runner, maxImageBytes, 5*time.Minute, zap.NewNop())
	result, err := uc.Execute(context.Background(), newSubmitRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if len(result.Images) != 2 {
		t.Errorf("expected 2 images, got %d", len(result.Images))
	}
	if len(repo.Created) != 1 || len(repo.Results) != 1 {
		t.Errorf("expected job persisted with result, got %d/%d", len(repo.Created), len(repo.Results))
	}
	if ledger.DeductionCount() != 1 || ledger.Deductions[0].Amount != 2 {
		t.Errorf("expected 2 credits deducted once, got %+v", ledger.Deductions)
	}
}

func TestLocalizeSync_Ineligible(t *testing.T) {
	ledger := &mock.Ledger{
		CheckEligibleFn: func(ctx context.Context, ownerID string, required int) error {
			return domain.ErrInsufficientCredits
		},
	}
	runner := &fakeRunner{}

	uc := usecase.NewLocalizeSyncUsecase(&mock.JobRepository{}, ledger, runner, maxImageBytes, 5*time.Minute, zap.NewNop())
	_, err := uc.Execute(context.Background(), newSubmitRequest())
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if runner.Calls != 0 {
		t.Error("ineligible request must not run the pipeline")
	}
}
