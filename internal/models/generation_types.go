package models

// WorksheetRequest is the validated lesson form that drives generation.
// Binding tags reject malformed input before any external call is made.
type WorksheetRequest struct {
	DurationMinutes int      `json:"durationMinutes" binding:"required,min=5,max=240"`
	Level           string   `json:"level" binding:"required"`
	Topic           string   `json:"topic" binding:"required"`
	Goal            string   `json:"goal" binding:"required"`
	Preferences     []string `json:"preferences"`
	FreeText        string   `json:"freeText" binding:"max=2000"`
	// Formality scale: 1 = casual ("du"), 5 = formal ("Sie").
	Formality int `json:"formality" binding:"required,min=1,max=5"`
}
