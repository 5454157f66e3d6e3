package models

// IntakeForm is the one-shot consultation request: personal details, the
// problem and any specific questions, answered with a single report.
type IntakeForm struct {
	Name           string   `json:"name" validate:"required,max=200"`
	BirthDate      string   `json:"birth_date" validate:"required,max=64"`
	BirthTime      string   `json:"birth_time,omitempty" validate:"max=64"`
	BirthPlace     string   `json:"birth_place" validate:"required,max=200"`
	Problem        string   `json:"problem" validate:"required,max=4000"`
	Questions      []string `json:"questions,omitempty" validate:"max=20,dive,required,max=500"`
	AdditionalInfo string   `json:"additional_info,omitempty" validate:"max=4000"`
}

// Profile converts the form into the profile shape used by conversations.
func (f IntakeForm) Profile() UserProfile {
	return UserProfile{
		Name:            f.Name,
		BirthDate:       f.BirthDate,
		BirthTime:       f.BirthTime,
		BirthPlace:      f.BirthPlace,
		Concern:         f.Problem,
		ProblemDetails:  f.Problem,
		AdditionalNotes: f.AdditionalInfo,
	}
}
