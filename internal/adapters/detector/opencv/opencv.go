//go:build opencv

// Package opencv detects faces in process with OpenCV DNN models.
//
// A single-shot face detector (res10 SSD) finds faces; each crop is fed to an
// embedding network (OpenFace-style, 96x96 input) that yields the descriptor.
// Build with -tags opencv and a local OpenCV installation.
package opencv

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/okian/rollcall/internal/domain/detect"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

const (
	detectorInputSide = 300
	embedderInputSide = 96
)

// Detector runs face detection and embedding on the CPU. gocv networks are
// not safe for concurrent use, so calls are serialised.
type Detector struct {
	mu       sync.Mutex
	faceNet  gocv.Net
	embedNet gocv.Net
	minScore float64
	logger   logger.Logger
}

var _ detect.Detector = (*Detector)(nil)

// New loads the face detector (faceModel, faceConfig) and the embedding
// network (embedModel). Missing or unreadable models yield ErrUnavailable.
func New(faceModel, faceConfig, embedModel string, opts ...Option) (*Detector, error) {
	for _, p := range []string{faceModel, faceConfig, embedModel} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: model file %s: %w", detect.ErrUnavailable, p, err)
		}
	}

	faceNet := gocv.ReadNet(faceModel, faceConfig)
	if faceNet.Empty() {
		return nil, fmt.Errorf("%w: failed to load face network", detect.ErrUnavailable)
	}
	embedNet := gocv.ReadNet(embedModel, "")
	if embedNet.Empty() {
		_ = faceNet.Close()
		return nil, fmt.Errorf("%w: failed to load embedding network", detect.ErrUnavailable)
	}
	for _, n := range []*gocv.Net{&faceNet, &embedNet} {
		if err := n.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			return nil, fmt.Errorf("%w: set backend: %w", detect.ErrUnavailable, err)
		}
		if err := n.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			return nil, fmt.Errorf("%w: set target: %w", detect.ErrUnavailable, err)
		}
	}

	d := &Detector{
		faceNet:  faceNet,
		embedNet: embedNet,
		minScore: defaultMinScore,
		logger:   logger.Get().Named("opencv"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger.Info(context.Background(), "face networks loaded",
		logger.String("face_model", faceModel),
		logger.String("embed_model", embedModel),
	)
	return d, nil
}

// DetectFaces decodes image, finds faces and embeds each of them.
func (d *Detector) DetectFaces(ctx context.Context, img []byte) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", detect.ErrDetection, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", detect.ErrDetection)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	boxes, scores := d.findFaces(mat)
	dets := make([]model.Detection, 0, len(boxes))
	for i, r := range boxes {
		emb, err := d.embed(mat, r)
		if err != nil {
			d.logger.Warn(ctx, "face embedding failed", logger.Error(err))
			continue
		}
		dets = append(dets, model.Detection{
			Box:       model.BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()},
			Embedding: emb,
			Score:     scores[i],
		})
	}

	return dets, nil
}

// findFaces runs the SSD detector. Its output rows are
// [batch, class, confidence, x1, y1, x2, y2] with relative coordinates.
func (d *Detector) findFaces(mat gocv.Mat) ([]image.Rectangle, []float64) {
	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(detectorInputSide, detectorInputSide),
		gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.faceNet.SetInput(blob, "")
	output := d.faceNet.Forward("")
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	var boxes []image.Rectangle
	var scores []float64
	for i := 0; i < rows.Rows(); i++ {
		confidence := float64(rows.GetFloatAt(i, 2))
		if confidence < d.minScore {
			continue
		}
		r := image.Rect(
			int(rows.GetFloatAt(i, 3)*float32(mat.Cols())),
			int(rows.GetFloatAt(i, 4)*float32(mat.Rows())),
			int(rows.GetFloatAt(i, 5)*float32(mat.Cols())),
			int(rows.GetFloatAt(i, 6)*float32(mat.Rows())),
		).Intersect(bounds)
		if r.Empty() {
			continue
		}
		boxes = append(boxes, r)
		scores = append(scores, confidence)
	}
	return boxes, scores
}

func (d *Detector) embed(mat gocv.Mat, r image.Rectangle) (model.Embedding, error) {
	crop := mat.Region(r)
	defer crop.Close()

	blob := gocv.BlobFromImage(crop, 1.0/255, image.Pt(embedderInputSide, embedderInputSide),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.embedNet.SetInput(blob, "")
	out := d.embedNet.Forward("")
	defer out.Close()

	n := out.Total()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty embedding", detect.ErrDetection)
	}
	flat := out.Reshape(1, 1)
	defer flat.Close()
	emb := make(model.Embedding, n)
	for i := range n {
		emb[i] = flat.GetFloatAt(0, i)
	}
	return emb, nil
}

// Close releases the networks.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.faceNet.Close(); err != nil {
		return err
	}
	return d.embedNet.Close()
}
