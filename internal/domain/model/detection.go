package model

// Embedding is a fixed-length face descriptor produced by the detector.
type Embedding []float32

// Dim returns the vector dimension.
func (e Embedding) Dim() int { return len(e) }

// Clone returns an independent copy.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// BoundingBox locates a face in pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection is one face found in an image. It is never persisted.
type Detection struct {
	Box       BoundingBox
	Embedding Embedding
	Score     float64
}
