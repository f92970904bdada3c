// Package gforms is a thin REST client for the Google Forms v1 API.
package gforms

// Info is the form-level metadata block.
type Info struct {
	Title         string `json:"title,omitempty"`
	DocumentTitle string `json:"documentTitle,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Form is the subset of the API form resource the executor reads.
type Form struct {
	FormID       string `json:"formId,omitempty"`
	Info         *Info  `json:"info,omitempty"`
	Items        []Item `json:"items,omitempty"`
	ResponderURI string `json:"responderUri,omitempty"`
}

// Item is one entry in a form's item list.
type Item struct {
	ItemID       string        `json:"itemId,omitempty"`
	Title        string        `json:"title,omitempty"`
	QuestionItem *QuestionItem `json:"questionItem,omitempty"`
}

type QuestionItem struct {
	Question *Question `json:"question,omitempty"`
}

// Question carries exactly one of the per-kind blocks.
type Question struct {
	Required           bool                `json:"required,omitempty"`
	TextQuestion       *TextQuestion       `json:"textQuestion,omitempty"`
	ChoiceQuestion     *ChoiceQuestion     `json:"choiceQuestion,omitempty"`
	DateQuestion       *DateQuestion       `json:"dateQuestion,omitempty"`
	TimeQuestion       *TimeQuestion       `json:"timeQuestion,omitempty"`
	ScaleQuestion      *ScaleQuestion      `json:"scaleQuestion,omitempty"`
	FileUploadQuestion *FileUploadQuestion `json:"fileUploadQuestion,omitempty"`
	TextValidation     *TextValidation     `json:"textValidation,omitempty"`
}

type TextQuestion struct {
	Paragraph bool `json:"paragraph"`
}

type ChoiceQuestion struct {
	Type    string   `json:"type"`
	Options []Option `json:"options"`
}

type Option struct {
	Value string `json:"value"`
}

type DateQuestion struct {
	IncludeTime bool `json:"includeTime"`
	IncludeYear bool `json:"includeYear"`
}

type TimeQuestion struct {
	Duration bool `json:"duration"`
}

type ScaleQuestion struct {
	Low       int    `json:"low"`
	High      int    `json:"high"`
	LowLabel  string `json:"lowLabel,omitempty"`
	HighLabel string `json:"highLabel,omitempty"`
}

type FileUploadQuestion struct {
	FolderID    string `json:"folderId,omitempty"`
	MaxFiles    int    `json:"maxFiles,omitempty"`
	MaxFileSize int64  `json:"maxFileSize,omitempty"`
}

type TextValidation struct {
	Type string `json:"type"`
}

// Request is the batchUpdate operation union; exactly one member is set.
type Request struct {
	CreateItem     *CreateItemRequest     `json:"createItem,omitempty"`
	DeleteItem     *DeleteItemRequest     `json:"deleteItem,omitempty"`
	UpdateFormInfo *UpdateFormInfoRequest `json:"updateFormInfo,omitempty"`
	UpdateSettings *UpdateSettingsRequest `json:"updateSettings,omitempty"`
}

type CreateItemRequest struct {
	Item     Item     `json:"item"`
	Location Location `json:"location"`
}

type DeleteItemRequest struct {
	Location Location `json:"location"`
}

type Location struct {
	Index int `json:"index"`
}

type UpdateFormInfoRequest struct {
	Info       Info   `json:"info"`
	UpdateMask string `json:"updateMask"`
}

type UpdateSettingsRequest struct {
	Settings   FormSettings `json:"settings"`
	UpdateMask string       `json:"updateMask"`
}

// FormSettings is the settings resource subset the materializer writes.
type FormSettings struct {
	QuizSettings         *QuizSettings         `json:"quizSettings,omitempty"`
	RequireLoginSettings *RequireLoginSettings `json:"requireLoginSettings,omitempty"`
	ConfirmationMessage  *ConfirmationMessage  `json:"confirmationMessage,omitempty"`
}

type QuizSettings struct {
	IsQuiz bool `json:"isQuiz"`
}

type RequireLoginSettings struct {
	RequireLogin bool `json:"requireLogin"`
}

type ConfirmationMessage struct {
	Text string `json:"text"`
}
