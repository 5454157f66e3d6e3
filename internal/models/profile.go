package models

// UserProfile is the sparsely populated record of what the user has told the
// astrologer so far. Fields are filled opportunistically and never validated.
type UserProfile struct {
	Name            string `json:"name,omitempty"`
	BirthDate       string `json:"birth_date,omitempty"`
	BirthTime       string `json:"birth_time,omitempty"`
	BirthPlace      string `json:"birth_place,omitempty"`
	Concern         string `json:"concern,omitempty"`
	ProblemDetails  string `json:"problem_details,omitempty"`
	LifeArea        string `json:"life_area,omitempty"`
	Timeframe       string `json:"timeframe,omitempty"`
	PriorExperience string `json:"prior_experience,omitempty"`
	AdditionalNotes string `json:"additional_notes,omitempty"`
}

// IsEmpty reports whether no field has been set.
func (p UserProfile) IsEmpty() bool {
	return p == UserProfile{}
}

// Fields returns the populated fields as label/value pairs in a stable order.
func (p UserProfile) Fields() [][2]string {
	all := [][2]string{
		{"Name", p.Name},
		{"Birth date", p.BirthDate},
		{"Birth time", p.BirthTime},
		{"Birth place", p.BirthPlace},
		{"Concern", p.Concern},
		{"Problem details", p.ProblemDetails},
		{"Life area", p.LifeArea},
		{"Timeframe", p.Timeframe},
		{"Prior experience", p.PriorExperience},
		{"Additional notes", p.AdditionalNotes},
	}

	out := make([][2]string, 0, len(all))
	for _, f := range all {
		if f[1] != "" {
			out = append(out, f)
		}
	}
	return out
}
