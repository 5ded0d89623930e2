// Package roster provides read access to enrolled identities.
package roster

import (
	"context"

	"github.com/okian/rollcall/internal/domain/model"
)

// Roster lists identities and their course enrolments. Identities are
// returned normalized and in a stable order.
type Roster interface {
	// All returns every identity.
	All(ctx context.Context) ([]model.Identity, error)
	// Enrolled returns the identities enrolled in course.
	Enrolled(ctx context.Context, course string) ([]model.Identity, error)
	// Get returns one identity or ErrNotFound.
	Get(ctx context.Context, id string) (model.Identity, error)
}

// filterEnrolled keeps identities enrolled in course, preserving order.
func filterEnrolled(all []model.Identity, course string) []model.Identity {
	course = model.NormalizeCourse(course)
	out := make([]model.Identity, 0, len(all))
	for _, id := range all {
		if id.EnrolledIn(course) {
			out = append(out, id)
		}
	}
	return out
}
