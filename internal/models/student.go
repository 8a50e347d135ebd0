package models

// StudentRef is the student a fee belongs to.
// Fees whose reference cannot be resolved are dropped when grouping.
type StudentRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AdmissionNo string `json:"admissionNo"`
	ClassID     string `json:"classId"`
	SectionID   string `json:"sectionId"`
}
