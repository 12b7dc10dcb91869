package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	mockpub "github.com/devesh1011/vyloc-backend-api/internal/publisher/mock"
	mockrepo "github.com/devesh1011/vyloc-backend-api/internal/repository/mock"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRunner completes every target inline.
type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error) {
	images := make([]domain.TargetResult, 0, len(job.Targets))
	for _, tgt := range job.Targets {
		images = append(images, domain.TargetResult{
			Language: tgt.Language,
			Status:   domain.TargetCompleted,
			ImageURL: "memory://results/" + string(tgt.Language) + ".png",
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

type testEnv struct {
	router   *gin.Engine
	repo     *mockrepo.JobRepository
	ledger   *mockrepo.Ledger
	pub      *mockpub.MockPublisher
	statuses *status.MemoryStore
}

func setupTestRouter() *testEnv {
	repo := &mockrepo.JobRepository{}
	ledger := &mockrepo.Ledger{}
	pub := mockpub.NewMockPublisher()
	channel := status.NewMemoryChannel()
	statuses := status.NewMemoryStore(channel)
	logger := zap.NewNop()

	maxImageBytes := 10 << 20

	router := NewRouter(RouterConfig{
		SubmitUC:        usecase.NewSubmitJobUsecase(repo, ledger, pub, statuses, maxImageBytes, logger),
		SyncUC:          usecase.NewLocalizeSyncUsecase(repo, ledger, fakeRunner{}, maxImageBytes, time.Minute, logger),
		GetJobUC:        usecase.NewGetJobUsecase(repo, logger),
		StatusUC:        usecase.NewGetStatusUsecase(statuses, logger),
		StatusManager:   status.NewManager(channel, statuses, time.Minute, logger),
		Logger:          logger,
		RateLimitPerMin: 1000,
		MaxBodyBytes:    int64(maxImageBytes) + 1<<20,
	})

	return &testEnv{router: router, repo: repo, ledger: ledger, pub: pub, statuses: statuses}
}

// submissionBody builds a multipart form with an image part and the given
// extra fields.
func submissionBody(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="image"; filename="ad.png"`}
	header["Content-Type"] = []string{"image/png"}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create image part: %v", err)
	}
	part.Write(image)

	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()

	return body, writer.FormDataContentType()
}

func TestSubmitAsync_Success(t *testing.T) {
	env := setupTestRouter()

	body, contentType := submissionBody(t, []byte("png-bytes"), map[string]string{
		"targets": `[{"language":"hindi"},{"language":"japanese","market":"japan"}]`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize/async", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", "owner-1")
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != domain.StatusQueued {
		t.Errorf("expected status queued, got %s", resp.Status)
	}
	if !strings.HasPrefix(resp.Channel, "/ws/jobs/") {
		t.Errorf("expected websocket channel path, got %q", resp.Channel)
	}
	if len(env.pub.Published) != 1 {
		t.Errorf("expected 1 published job, got %d", len(env.pub.Published))
	}
	if env.pub.Published[0].OwnerID != "owner-1" {
		t.Errorf("expected owner from header, got %q", env.pub.Published[0].OwnerID)
	}
	if _, err := env.statuses.Get(context.Background(), resp.JobID); err != nil {
		t.Errorf("expected seeded status snapshot: %v", err)
	}
}

func TestSubmitAsync_InvalidLanguage(t *testing.T) {
	env := setupTestRouter()

	body, contentType := submissionBody(t, []byte("png-bytes"), map[string]string{
		"targets": `[{"language":"klingon"}]`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize/async", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.pub.Published) != 0 {
		t.Errorf("expected no published jobs, got %d", len(env.pub.Published))
	}
}

func TestSubmitAsync_MalformedTargets(t *testing.T) {
	env := setupTestRouter()

	body, contentType := submissionBody(t, []byte("png-bytes"), map[string]string{
		"targets": `not-json`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize/async", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitAsync_MissingImage(t *testing.T) {
	env := setupTestRouter()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("targets", `[{"language":"hindi"}]`)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize/async", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitAsync_InsufficientCredits(t *testing.T) {
	env := setupTestRouter()
	env.ledger.CheckEligibleFn = func(ctx context.Context, ownerID string, required int) error {
		return domain.ErrInsufficientCredits
	}

	body, contentType := submissionBody(t, []byte("png-bytes"), map[string]string{
		"targets": `[{"language":"hindi"}]`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize/async", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusPaymentRequired {
		t.Errorf("expected status 402, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitAsync_PublishFailure(t *testing.T) {
	env := setupTestRouter()
	env.pub.PublishFn = func(ctx context.Context, job *domain.Job) error {
		return context.DeadlineExceeded
	}

	body, contentType := submissionBody(t, []byte("png-bytes"), map[string]string{
		"targets": `[{"language":"hindi"}]`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize/async", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLocalizeSync_Success(t *testing.T) {
	env := setupTestRouter()

	body, contentType := submissionBody(t, []byte("png-bytes"), map[string]string{
		"targets": `[{"language":"korean"},{"language":"german"}]`,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/localize", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var result domain.JobResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result.Status != domain.StatusCompleted {
		t.Errorf("expected completed result, got %s", result.Status)
	}
	if len(result.Images) != 2 {
		t.Errorf("expected 2 localized images, got %d", len(result.Images))
	}
	if result.CreditsUsed != 2 {
		t.Errorf("expected 2 credits used, got %d", result.CreditsUsed)
	}
	if env.ledger.DeductionCount() != 1 {
		t.Errorf("expected 1 deduction, got %d", env.ledger.DeductionCount())
	}
}

func TestGetJob_Success(t *testing.T) {
	env := setupTestRouter()

	jobID := uuid.New()
	env.repo.GetByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
		if id != jobID {
			return nil, domain.ErrJobNotFound
		}
		return &domain.Job{
			JobID:   jobID,
			OwnerID: "owner-1",
			Targets: []domain.Target{{Language: domain.LangHindi}},
			Status:  domain.StatusProcessing,
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var job domain.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to unmarshal job: %v", err)
	}
	if job.JobID != jobID {
		t.Errorf("expected job ID %s, got %s", jobID, job.JobID)
	}
	if job.Status != domain.StatusProcessing {
		t.Errorf("expected status processing, got %s", job.Status)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/00000000-0000-0000-0000-000000000001", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetJob_InvalidUUID(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetStatus_Success(t *testing.T) {
	env := setupTestRouter()

	jobID := uuid.New()
	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:    jobID,
		Status:   domain.StatusProcessing,
		Progress: 60,
		Message:  "Processing and uploading results...",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String()+"/status", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var evt domain.StatusEvent
	if err := json.Unmarshal(w.Body.Bytes(), &evt); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if evt.Progress != 60 {
		t.Errorf("expected progress 60, got %d", evt.Progress)
	}
}

func TestGetStatus_NotFound(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/status", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLanguageHandler(t *testing.T) {
	env := setupTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Languages []struct {
			Language      domain.Language `json:"language"`
			DefaultMarket domain.Market   `json:"default_market"`
		} `json:"languages"`
		Markets []domain.Market `json:"markets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp.Languages) != len(domain.SupportedLanguages) {
		t.Errorf("expected %d languages, got %d", len(domain.SupportedLanguages), len(resp.Languages))
	}
	if len(resp.Markets) != len(domain.SupportedMarkets) {
		t.Errorf("expected %d markets, got %d", len(domain.SupportedMarkets), len(resp.Markets))
	}
}

// Test: a websocket subscriber to an already-terminal job receives the
// snapshot and the connection closes.
func TestWebSocket_TerminalSnapshotClosesStream(t *testing.T) {
	env := setupTestRouter()

	jobID := uuid.New()
	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:    jobID,
		Status:   domain.StatusCompleted,
		Progress: 100,
		Message:  "Job finished",
	})

	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/jobs/" + jobID.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	var evt domain.StatusEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if evt.Status != domain.StatusCompleted || evt.Progress != 100 {
		t.Errorf("unexpected snapshot: %+v", evt)
	}

	// The server should close the connection after the terminal event.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after terminal snapshot")
	}
}

// Test: a client-initiated text "ping" is answered with "pong" while the
// subscription stays live.
func TestWebSocket_ClientPingGetsPong(t *testing.T) {
	env := setupTestRouter()

	jobID := uuid.New()
	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:   jobID,
		Status:  domain.StatusQueued,
		Message: "Job queued for processing",
	})

	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/jobs/" + jobID.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	var snapshot domain.StatusEvent
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("send ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no reply to client ping: %v", err)
	}
	if msgType != websocket.TextMessage || string(data) != "pong" {
		t.Errorf("expected text pong reply, got type %d payload %q", msgType, data)
	}

	// The subscription is still live after the probe.
	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:    jobID,
		Status:   domain.StatusProcessing,
		Progress: 5,
		Message:  "Processing started",
	})
	var evt domain.StatusEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event after probe: %v", err)
	}
	if evt.Status != domain.StatusProcessing {
		t.Errorf("expected processing event after probe, got %s", evt.Status)
	}
}

// Test: live events published while subscribed are streamed in order.
func TestWebSocket_StreamsLiveEvents(t *testing.T) {
	env := setupTestRouter()

	jobID := uuid.New()
	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:   jobID,
		Status:  domain.StatusQueued,
		Message: "Job queued for processing",
	})

	server := httptest.NewServer(env.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/jobs/" + jobID.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	// Snapshot first.
	var snapshot domain.StatusEvent
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Status != domain.StatusQueued {
		t.Fatalf("expected queued snapshot, got %s", snapshot.Status)
	}

	// Give the relay a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:    jobID,
		Status:   domain.StatusProcessing,
		Progress: 5,
		Message:  "Processing started",
	})
	env.statuses.Set(context.Background(), &domain.StatusEvent{
		JobID:    jobID,
		Status:   domain.StatusCompleted,
		Progress: 100,
		Message:  "Job finished",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var processing domain.StatusEvent
	if err := conn.ReadJSON(&processing); err != nil {
		t.Fatalf("read processing event: %v", err)
	}
	if processing.Status != domain.StatusProcessing || processing.Progress != 5 {
		t.Errorf("unexpected processing event: %+v", processing)
	}

	var terminal domain.StatusEvent
	if err := conn.ReadJSON(&terminal); err != nil {
		t.Fatalf("read terminal event: %v", err)
	}
	if terminal.Status != domain.StatusCompleted || terminal.Progress != 100 {
		t.Errorf("unexpected terminal event: %+v", terminal)
	}
}
