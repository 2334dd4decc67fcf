package parkingHandler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"intellilot/internal/api/parking"
	"intellilot/internal/entity"
	"intellilot/internal/middleware"
	"intellilot/internal/pipeline"
	jwtPkg "intellilot/pkg/jwt"
	"intellilot/pkg/log"
	"intellilot/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Setenv("JWT_ACCESS_TOKEN_SECRET", "test-secret")
	os.Exit(m.Run())
}

type stubParkingService struct {
	detectRes  parking.DetectionResponse
	detectErr  error
	enqueueRes    parking.EnqueueResponse
	enqueueErr    error
	enqueueCamera string
	enqueueNode   string
	history    parking.HistoryResponse
	historyErr error
	latest     entity.ResultRecord
	latestErr  error
	stats      pipeline.StatsSnapshot
}

func (s *stubParkingService) ProcessRaw(_ context.Context, _ string, _ parking.UpdateRawRequest, _ []byte) (parking.DetectionResponse, error) {
	return s.detectRes, s.detectErr
}

func (s *stubParkingService) Detect(_ context.Context, _ parking.DetectRequest, _ []byte) (parking.DetectionResponse, error) {
	return s.detectRes, s.detectErr
}

func (s *stubParkingService) SaveEdgeUpdate(_ context.Context, _ string, _ parking.UpdateRequest) (parking.RecordResponse, error) {
	return parking.RecordResponse{}, nil
}

func (s *stubParkingService) History(_ context.Context, _, _ string, _, _ int) (parking.HistoryResponse, error) {
	return s.history, s.historyErr
}

func (s *stubParkingService) LatestByCamera(_ context.Context, cameraID string) (entity.CameraStatus, error) {
	return entity.CameraStatus{CameraID: cameraID}, nil
}

func (s *stubParkingService) EnqueueFrame(_ context.Context, cameraID, nodeID string, _ []byte) (parking.EnqueueResponse, error) {
	s.enqueueCamera = cameraID
	s.enqueueNode = nodeID
	return s.enqueueRes, s.enqueueErr
}

func (s *stubParkingService) Results(_ int) []entity.ResultRecord {
	return nil
}

func (s *stubParkingService) LatestResult() (entity.ResultRecord, error) {
	return s.latest, s.latestErr
}

func (s *stubParkingService) PipelineStats() pipeline.StatsSnapshot {
	return s.stats
}

func newTestApp(t *testing.T, svc *stubParkingService) *fiber.App {
	t.Helper()

	logger := log.NewLogger()
	app := fiber.New()
	h := New(logger, svc, validator.New(), middleware.New(logger), utils.New(), pipeline.NewHub())
	h.Start(app.Group("/api/v1"))

	return app
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()

	token, _, err := jwtPkg.Sign(map[string]interface{}{
		"id":           userID,
		"username":     "alice",
		"organization": "acme",
	}, time.Hour)
	require.NoError(t, err)

	return "Bearer " + token
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func frameForm(t *testing.T, cameraID, nodeID string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("camera_id", cameraID))
	require.NoError(t, writer.WriteField("node_id", nodeID))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="frame"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestHandleDetectReturnsCounts(t *testing.T) {
	svc := &stubParkingService{
		detectRes: parking.DetectionResponse{
			TotalSlots:    3,
			OccupiedSlots: 1,
			EmptySlots:    2,
			OccupancyRate: 33.33,
			CarsDetected:  1,
		},
	}
	app := newTestApp(t, svc)

	req := jsonRequest(http.MethodPost, "/api/v1/parking/detect", fiber.Map{
		"coordinates": [][]float64{{10, 10, 50, 50}},
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body parking.DetectionResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, 3, body.TotalSlots)
	assert.Equal(t, 1, body.OccupiedSlots)
}

func TestHandleDetectRequiresCoordinates(t *testing.T) {
	app := newTestApp(t, &stubParkingService{})

	req := jsonRequest(http.MethodPost, "/api/v1/parking/detect", fiber.Map{})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleEnqueueFrameRequiresToken(t *testing.T) {
	app := newTestApp(t, &stubParkingService{})

	body, contentType := frameForm(t, "cam-1", "node-7")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parking/frames", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleEnqueueFrameAccepted(t *testing.T) {
	svc := &stubParkingService{
		enqueueRes: parking.EnqueueResponse{TaskID: "task-1", CameraID: "cam-1", Queued: true},
	}
	app := newTestApp(t, svc)

	body, contentType := frameForm(t, "cam-1", "node-7")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parking/frames", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out parking.EnqueueResponse
	decodeBody(t, resp, &out)
	assert.True(t, out.Queued)
	assert.Equal(t, "task-1", out.TaskID)
	assert.Equal(t, "cam-1", svc.enqueueCamera)
	assert.Equal(t, "node-7", svc.enqueueNode)
}

func TestHandleEnqueueFrameQueueFull(t *testing.T) {
	app := newTestApp(t, &stubParkingService{enqueueErr: parking.ErrQueueFull})

	body, contentType := frameForm(t, "cam-1", "node-7")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parking/frames", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleGetDataRejectsForeignUser(t *testing.T) {
	app := newTestApp(t, &stubParkingService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/parking/data/someone-else", nil)
	req.Header.Set("Authorization", bearerToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleGetDataReturnsHistory(t *testing.T) {
	svc := &stubParkingService{
		history: parking.HistoryResponse{
			Records: []parking.RecordResponse{{ID: "rec-1", CameraID: "cam-1"}},
			Total:   1,
			Limit:   50,
		},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/parking/data/u1", nil)
	req.Header.Set("Authorization", bearerToken(t, "u1"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out parking.HistoryResponse
	decodeBody(t, resp, &out)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "rec-1", out.Records[0].ID)
	assert.Equal(t, 1, out.Total)
}

func TestHandleLatestResultEmptyLedger(t *testing.T) {
	app := newTestApp(t, &stubParkingService{latestErr: parking.ErrNoResults})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/latest", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlePipelineStats(t *testing.T) {
	svc := &stubParkingService{
		stats: pipeline.StatsSnapshot{FramesProcessed: 7, QueueCapacity: 20, Workers: 2},
	}
	app := newTestApp(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pipeline/stats", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out pipeline.StatsSnapshot
	decodeBody(t, resp, &out)
	assert.Equal(t, int64(7), out.FramesProcessed)
	assert.Equal(t, 2, out.Workers)
}
