package model

// Signal is a named rule that adds Points to a philosophy's score when it
// holds.
type Signal struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	Rule   string `json:"rule" yaml:"rule" validate:"required"`
	Points int    `json:"points" yaml:"points" validate:"gt=0"`
}

// Detection groups the positive signals of a philosophy.
type Detection struct {
	Weight  float64  `json:"weight" yaml:"weight" validate:"gte=0"`
	Signals []Signal `json:"signals" yaml:"signals" validate:"dive"`
}

// Philosophy is one catalog entry. Entries are read-only once loaded.
type Philosophy struct {
	ID           string         `json:"id" yaml:"id" validate:"required"`
	DisplayName  string         `json:"display_name" yaml:"display_name" validate:"required"`
	Description  string         `json:"description,omitempty" yaml:"description"`
	Detection    Detection      `json:"detection" yaml:"detection"`
	Exclusions   []string       `json:"exclusions" yaml:"exclusions" validate:"dive,required"`
	VisualMotifs map[string]any `json:"visual_motifs,omitempty" yaml:"visual_motifs"`
}

// MaxPoints is the sum of all signal points.
func (p *Philosophy) MaxPoints() int {
	total := 0
	for _, s := range p.Detection.Signals {
		total += s.Points
	}
	return total
}

// Catalog is the ordered set of philosophies. Order matters: it breaks ties
// when results are ranked.
type Catalog struct {
	Version      string       `json:"version,omitempty" yaml:"version"`
	Philosophies []Philosophy `json:"philosophies" yaml:"philosophies" validate:"dive"`
}

// Find returns the philosophy with the given id.
func (c *Catalog) Find(id string) (*Philosophy, bool) {
	for i := range c.Philosophies {
		if c.Philosophies[i].ID == id {
			return &c.Philosophies[i], true
		}
	}
	return nil, false
}
