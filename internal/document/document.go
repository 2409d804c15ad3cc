// Package document defines the canonical structured resume document and its
// structural invariants. A Document is a pure value: it exposes no mutation
// methods, and all change flows through the merge engine so the invariants
// stay enforced in one place.
package document

import (
	"encoding/json"
	"fmt"
)

// Contact holds the identity sub-fields of a document. Optional fields are
// empty strings when unset.
type Contact struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Blogs    string `json:"blogs,omitempty"`
}

// Experience is one work-history entry. Order within Document.Experience is
// significant (reverse-chronological by convention, not enforced).
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

// Education is one education entry.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year"`
}

// Project is one project entry.
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TechStack   []string `json:"techStack"`
}

// Document is the canonical resume (or, structurally identically, cover
// letter) state for one session. It is always total: every field is present
// with its zero default even before the first chat turn.
type Document struct {
	Name         string       `json:"name"`
	Title        string       `json:"title"`
	Contact      Contact      `json:"contact"`
	Summary      string       `json:"summary"`
	Experience   []Experience `json:"experience"`
	Education    []Education  `json:"education"`
	Skills       []string     `json:"skills"`
	Projects     []Project    `json:"projects"`
	Achievements []string     `json:"achievements"`
}

// FieldNames lists the top-level document fields in canonical order. The
// patch validator uses this to reject unknown keys in model output.
func FieldNames() []string {
	return []string{
		"name", "title", "contact", "summary",
		"experience", "education", "skills", "projects", "achievements",
	}
}

// New returns the zero-value Document used to seed a new session. All
// collection fields are empty (non-nil) slices.
func New() Document {
	return Document{
		Experience:   []Experience{},
		Education:    []Education{},
		Skills:       []string{},
		Projects:     []Project{},
		Achievements: []string{},
	}
}

// Validate checks the structural invariants: every collection field must be a
// sequence (non-nil), including the tech stack of each project.
func (d Document) Validate() error {
	if d.Experience == nil {
		return fmt.Errorf("document invariant violated: experience is not a sequence")
	}
	if d.Education == nil {
		return fmt.Errorf("document invariant violated: education is not a sequence")
	}
	if d.Skills == nil {
		return fmt.Errorf("document invariant violated: skills is not a sequence")
	}
	if d.Projects == nil {
		return fmt.Errorf("document invariant violated: projects is not a sequence")
	}
	if d.Achievements == nil {
		return fmt.Errorf("document invariant violated: achievements is not a sequence")
	}
	for i, p := range d.Projects {
		if p.TechStack == nil {
			return fmt.Errorf("document invariant violated: projects[%d].techStack is not a sequence", i)
		}
	}
	return nil
}

// Normalize repairs nil slices left behind by JSON decoding so the totality
// invariant holds again. It returns the repaired copy.
func (d Document) Normalize() Document {
	if d.Experience == nil {
		d.Experience = []Experience{}
	}
	if d.Education == nil {
		d.Education = []Education{}
	}
	if d.Skills == nil {
		d.Skills = []string{}
	}
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.Achievements == nil {
		d.Achievements = []string{}
	}
	for i := range d.Projects {
		if d.Projects[i].TechStack == nil {
			d.Projects[i].TechStack = []string{}
		}
	}
	return d
}

// Clone returns a deep copy. The merge engine produces new values rather than
// mutating in place; Clone keeps the previous and next document from aliasing
// shared slices.
func (d Document) Clone() Document {
	out := d
	out.Experience = append([]Experience{}, d.Experience...)
	out.Education = append([]Education{}, d.Education...)
	out.Skills = append([]string{}, d.Skills...)
	out.Achievements = append([]string{}, d.Achievements...)
	out.Projects = make([]Project, len(d.Projects))
	for i, p := range d.Projects {
		p.TechStack = append([]string{}, p.TechStack...)
		out.Projects[i] = p
	}
	return out
}

// ToMap converts the document to the dynamic map representation the merge
// engine operates on.
func (d Document) ToMap() (map[string]any, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to convert document to map: %w", err)
	}
	return m, nil
}

// FromMap converts a dynamic map back into a typed Document and re-establishes
// the totality invariant.
func FromMap(m map[string]any) (Document, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Document{}, fmt.Errorf("failed to marshal document map: %w", err)
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("failed to decode document: %w", err)
	}
	return d.Normalize(), nil
}
