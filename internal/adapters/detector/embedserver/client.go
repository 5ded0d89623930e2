// Package embedserver detects faces through an HTTP face-embedding server.
//
// The server accepts a multipart "file" upload on POST /embed/face and
// answers with every face it found, each with a bounding box, a detection
// score and an embedding.
package embedserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultModel   = "buffalo_l"
	defaultTimeout = 30 * time.Second
	facePath       = "/embed/face"
	// maxErrorBody bounds how much of an error response is kept for logs.
	maxErrorBody = 512
)

// faceDetection is one face in the server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the body of a successful /embed/face call.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client implements detect.Detector against an embedding server.
type Client struct {
	baseURL  string
	model    string
	client   *http.Client
	maxSide  int
	minScore float64
	logger   logger.Logger
}

var _ detect.Detector = (*Client)(nil)

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   defaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger.Get().Named("embedserver"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name the server is expected to run.
func (c *Client) Model() string { return c.model }

// DetectFaces uploads image and converts the response into detections in the
// coordinate space of the original image.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]model.Detection, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", detect.ErrDetection)
	}

	payload, scale, err := downscale(image, c.maxSide)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", detect.ErrDetection, err)
	}

	body, err := c.postMultipartImage(ctx, facePath, payload)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", detect.ErrDetection, err)
	}

	dets := make([]model.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 || f.DetScore < c.minScore {
			continue
		}
		dets = append(dets, model.Detection{
			Box:       toBox(f.BBox, scale),
			Embedding: model.Embedding(f.Embedding),
			Score:     f.DetScore,
		})
	}

	c.logger.Debug(ctx, "faces detected",
		logger.Int("faces", len(dets)),
		logger.Int("reported", resp.FacesCount),
		logger.String("model", resp.Model),
	)
	return dets, nil
}

// toBox converts [x1 y1 x2 y2] from the uploaded image back to the original.
func toBox(bbox []float64, scale float64) model.BoundingBox {
	if len(bbox) != 4 {
		return model.BoundingBox{}
	}
	if scale <= 0 {
		scale = 1
	}
	x1, y1 := bbox[0]/scale, bbox[1]/scale
	x2, y2 := bbox[2]/scale, bbox[3]/scale
	return model.BoundingBox{
		X:      int(x1 + 0.5),
		Y:      int(y1 + 0.5),
		Width:  int(x2 - x1 + 0.5),
		Height: int(y2 - y1 + 0.5),
	}
}

// postMultipartImage posts imageData as the "file" part and returns the body
// of a 200 response. Client errors map to ErrDetection, transport failures
// and server errors to ErrUnavailable.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame"`)
	h.Set("Content-Type", http.DetectContentType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %w", detect.ErrDetection, err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("%w: write image data: %w", detect.ErrDetection, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart writer: %w", detect.ErrDetection, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", detect.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: request failed: %w", detect.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", detect.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d: %s", detect.ErrUnavailable, resp.StatusCode, truncate(body))
	default:
		return nil, fmt.Errorf("%w: status %d: %s", detect.ErrDetection, resp.StatusCode, truncate(body))
	}
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return strings.TrimSpace(string(b))
}
