package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const ragLimit = 3
const ragScoreThreshold = 0.5

// systemPrompt is the generation contract: output schema, field type catalog
// and worked examples the model is instructed to follow.
const systemPrompt = `You are a Google Forms generator AI. Your job is to convert user requests into structured form schemas.

CRITICAL RULES:
1. ALWAYS return ONLY valid JSON, no explanations, no markdown
2. The JSON must follow the exact schema below
3. If updating an existing form, modify it based on the user's request
4. If creating a new form, generate all necessary fields

OUTPUT SCHEMA:
{
  "title": "Form Title",
  "description": "Optional form description",
  "fields": [
    {
      "id": "unique_field_id",
      "type": "text|email|phone|number|dropdown|checkbox|radio|date|time|file|rating|paragraph",
      "label": "Question text",
      "placeholder": "Optional placeholder text",
      "required": true|false,
      "options": ["Option 1", "Option 2"],
      "validation": {
        "min": 1,
        "max": 100,
        "pattern": "regex pattern"
      }
    }
  ],
  "settings": {
    "allow_multiple_responses": false,
    "collect_email": true,
    "confirmation_message": "Thank you for your response!"
  }
}

FIELD TYPES REFERENCE:
- text: Short text input (names, titles)
- paragraph: Long text input (comments, descriptions)
- email: Email address with validation
- phone: Phone number
- number: Numeric input with min/max
- dropdown: Select one from dropdown list
- checkbox: Select multiple options
- radio: Select one option (radio buttons)
- date: Date picker
- time: Time picker
- file: File upload
- rating: Star rating (1-5 or 1-10)

GENERATION GUIDELINES:
- Use clear, concise labels
- Set appropriate required flags
- Include validation where needed
- Use descriptive field IDs (field_1, field_2, etc.)
- For dropdowns/radio/checkbox, provide 3-7 relevant options
- Add helpful placeholders for text fields
- Include a confirmation message in settings

EXAMPLES:

User: "Create a job application form"
Response:
{
  "title": "Job Application Form",
  "description": "Please fill out this form to apply for the position",
  "fields": [
    {"id": "field_1", "type": "text", "label": "Full Name", "placeholder": "Enter your full name", "required": true},
    {"id": "field_2", "type": "email", "label": "Email Address", "required": true},
    {"id": "field_3", "type": "phone", "label": "Phone Number", "required": true},
    {"id": "field_4", "type": "dropdown", "label": "Position Applying For", "required": true, "options": ["Software Engineer", "Product Manager", "Designer", "Other"]},
    {"id": "field_5", "type": "number", "label": "Years of Experience", "required": true, "validation": {"min": 0, "max": 50}},
    {"id": "field_6", "type": "file", "label": "Upload Resume (PDF)", "required": true},
    {"id": "field_7", "type": "paragraph", "label": "Why do you want to work here?", "required": false}
  ],
  "settings": {
    "allow_multiple_responses": false,
    "collect_email": true,
    "confirmation_message": "Thank you for applying! We'll review your application and get back to you soon."
  }
}

User: "Add a rating field from 1 to 5"
Existing form: {"title": "Feedback", "fields": [{"id": "field_1", "type": "text", "label": "Name"}]}
Response:
{
  "title": "Feedback",
  "fields": [
    {"id": "field_1", "type": "text", "label": "Name", "required": false},
    {"id": "field_2", "type": "rating", "label": "Rate your experience", "required": false, "validation": {"min": 1, "max": 5}}
  ]
}

REMEMBER:
- Return ONLY the JSON object
- No markdown code blocks
- No explanations before or after
- Generate unique IDs for new fields
- Preserve existing field IDs when modifying`

// runIntent composes the full generation prompt. Retrieval only runs on
// first-time creation and is best-effort: any embedding or index failure is
// logged and the turn proceeds without examples.
func (s *Service) runIntent(ctx context.Context, state *turnState) *turnState {
	examplesContext := ""

	if !state.updating() {
		examplesContext = s.retrieveExamples(ctx, state.input.Prompt)
	} else {
		s.logger.InfoContext(ctx, "Updating existing form, skipping retrieval",
			"conversation_id", state.input.ConversationID)
	}

	var prompt strings.Builder

	prompt.WriteString(systemPrompt)
	prompt.WriteString("\n\n")

	if examplesContext != "" {
		prompt.WriteString(examplesContext)
		prompt.WriteString("\n\n")
	}

	if state.updating() {
		snapshotJSON, err := json.Marshal(state.conversation.FormSnapshot)
		if err != nil {
			return state.fail(ErrorKindStorageFailure, "failed to serialize existing snapshot: "+err.Error())
		}

		prompt.WriteString("TASK: Update the existing form based on the user's request.\n\n")
		prompt.WriteString("USER REQUEST:\n")
		prompt.WriteString(state.input.Prompt)
		prompt.WriteString("\n\nEXISTING FORM (modify this):\n")
		prompt.Write(snapshotJSON)
		prompt.WriteString("\n")

		if state.input.Documents != "" {
			prompt.WriteString("\nADDITIONAL CONTEXT FROM DOCUMENTS:\n")
			prompt.WriteString(state.input.Documents)
			prompt.WriteString("\n")
		}

		prompt.WriteString("\nReturn the COMPLETE updated form as JSON. Include all existing fields unless explicitly asked to remove them.\n")
		prompt.WriteString("Only modify what the user requests - preserve everything else.\n")
	} else {
		prompt.WriteString("TASK: Create a new form based on the user's request.\n\n")
		prompt.WriteString("USER REQUEST:\n")
		prompt.WriteString(state.input.Prompt)
		prompt.WriteString("\n")

		if state.input.Documents != "" {
			prompt.WriteString("\nADDITIONAL CONTEXT FROM DOCUMENTS:\n")
			prompt.WriteString(state.input.Documents)
			prompt.WriteString("\n")
		}

		prompt.WriteString("\nReturn the complete form schema as JSON.\n")
		prompt.WriteString("Generate appropriate fields based on the user's needs.\n")
	}

	state.llmInput = prompt.String()

	s.logger.InfoContext(ctx, "Intent stage composed prompt",
		"conversation_id", state.input.ConversationID,
		"retrieval_context", examplesContext != "")

	return state
}

func (s *Service) retrieveExamples(ctx context.Context, prompt string) string {
	if s.embedder == nil || s.index == nil {
		return ""
	}

	vector, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		s.logger.WarnContext(ctx, "Retrieval skipped: embedding failed", "error", err)

		return ""
	}

	records, err := s.index.QuerySimilar(ctx, vector, ragLimit, ragScoreThreshold)
	if err != nil {
		s.logger.WarnContext(ctx, "Retrieval skipped: index query failed", "error", err)

		return ""
	}

	if len(records) == 0 {
		s.logger.InfoContext(ctx, "No similar forms cleared the score threshold")

		return ""
	}

	var examples strings.Builder

	examples.WriteString("SIMILAR FORMS FROM DATABASE (Use these as reference):\n")

	for i, record := range records {
		snapshotJSON, err := json.MarshalIndent(record.Snapshot, "", "  ")
		if err != nil {
			continue
		}

		fmt.Fprintf(&examples, "\nExample %d (Similarity: %.0f%%):\n%s\n", i+1, record.Score*100, snapshotJSON)
	}

	examples.WriteString("\nNote: These are real forms from our database that are similar to what the user is asking for.\n")
	examples.WriteString("Use them as inspiration for structure and field types, but create a unique form based on the user's specific request.\n")

	s.logger.InfoContext(ctx, "Retrieval found similar forms", "count", len(records))

	return examples.String()
}
