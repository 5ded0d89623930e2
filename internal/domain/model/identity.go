// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"strings"
)

// Identity is an enrolled person that may appear in the gallery.
type Identity struct {
	ID         string   `json:"identity_id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Department string   `json:"department,omitempty" yaml:"department"`
	Level      string   `json:"level,omitempty" yaml:"level"`
	Courses    []string `json:"courses,omitempty" yaml:"courses"`
	// ImageRef locates the reference face image (file name, URL or object key).
	ImageRef string `json:"image_ref,omitempty" yaml:"image"`
}

// NormalizeID canonicalises identity ids (matric numbers): trimmed, upper case.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeCourse canonicalises course ids: trimmed, upper case.
func NormalizeCourse(course string) string {
	return strings.ToUpper(strings.TrimSpace(course))
}

// Normalized returns a copy with id and course ids canonicalised.
func (i Identity) Normalized() Identity {
	out := i
	out.ID = NormalizeID(i.ID)
	out.Name = strings.TrimSpace(i.Name)
	out.Courses = make([]string, 0, len(i.Courses))
	for _, c := range i.Courses {
		if c = NormalizeCourse(c); c != "" && !slices.Contains(out.Courses, c) {
			out.Courses = append(out.Courses, c)
		}
	}
	return out
}

// EnrolledIn reports whether the identity takes course.
func (i Identity) EnrolledIn(course string) bool {
	course = NormalizeCourse(course)
	for _, c := range i.Courses {
		if NormalizeCourse(c) == course {
			return true
		}
	}
	return false
}
