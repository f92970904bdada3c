package planner

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/llm"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
)

const repairPromptHeader = `You must convert the following text into STRICT valid JSON.
Return ONLY valid JSON.
No explanation. No markdown.

`

// runGenerate calls the model, extracts the snapshot object (with one repair
// re-prompt), persists it as the conversation's new version, and upserts the
// retrieval index best-effort.
func (s *Service) runGenerate(ctx context.Context, state *turnState) *turnState {
	rawOutput, err := s.generator.Generate(ctx, state.llmInput)
	if err != nil {
		s.logger.ErrorContext(ctx, "Generation failed", "conversation_id", state.input.ConversationID, "error", err)

		return state.fail(ErrorKindGenerationFailure, err.Error())
	}

	state.rawOutput = rawOutput

	parsed, err := llm.ExtractJSON(rawOutput)
	if err != nil {
		s.logger.WarnContext(ctx, "Initial JSON parsing failed, attempting repair",
			"conversation_id", state.input.ConversationID)

		parsed, err = s.repair(ctx, rawOutput)
		if err != nil {
			s.logger.ErrorContext(ctx, "JSON repair failed", "conversation_id", state.input.ConversationID, "error", err)

			// rawOutput stays on the state for diagnostics; nothing persists.
			return state.fail(ErrorKindInvalidJSON, "model output could not be parsed as JSON")
		}

		s.logger.InfoContext(ctx, "JSON repair successful", "conversation_id", state.input.ConversationID)
	}

	state.parsed = parsed

	for _, warning := range llm.CheckSnapshotShape(parsed) {
		s.logger.WarnContext(ctx, "Snapshot shape warning",
			"conversation_id", state.input.ConversationID, "warning", warning)
	}

	snapshot, err := snapshotFromObject(parsed)
	if err != nil {
		return state.fail(ErrorKindInvalidJSON, "extracted object does not decode as a snapshot: "+err.Error())
	}

	if err := snapshot.Validate(); err != nil {
		// The model output is authoritative; invariant breaches are
		// surfaced to operators but still persisted.
		s.logger.WarnContext(ctx, "Snapshot violates field invariants",
			"conversation_id", state.input.ConversationID, "error", err)
	}

	conversation, err := s.persistence.UpdateSnapshot(ctx,
		state.input.ConversationID, state.conversation.CurrentVersion, snapshot, models.StagePlanner)
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrConversationNotFound):
			return state.fail(ErrorKindConversationNotFound, "")
		case errors.Is(err, persistence.ErrConversationConflict):
			return state.fail(ErrorKindConversationConflict, "another turn updated this conversation concurrently")
		default:
			s.logger.ErrorContext(ctx, "Snapshot persistence failed",
				"conversation_id", state.input.ConversationID, "error", err)

			return state.fail(ErrorKindStorageFailure, err.Error())
		}
	}

	state.conversation = conversation
	state.snapshot = snapshot
	state.version = conversation.CurrentVersion

	s.logger.InfoContext(ctx, "Form snapshot saved",
		"conversation_id", conversation.ID, "version", conversation.CurrentVersion)

	// The snapshot is already durable; indexing failures never fail the turn.
	s.indexSnapshot(ctx, state.input.ConversationID, parsed)

	return state
}

func (s *Service) repair(ctx context.Context, rawOutput string) (map[string]any, error) {
	repaired, err := s.generator.Generate(ctx, repairPromptHeader+rawOutput)
	if err != nil {
		return nil, err
	}

	return llm.ExtractJSON(repaired)
}

func (s *Service) indexSnapshot(ctx context.Context, conversationID string, parsed map[string]any) {
	if s.embedder == nil || s.index == nil {
		return
	}

	serialized, err := json.Marshal(parsed)
	if err != nil {
		s.logger.WarnContext(ctx, "Index upsert skipped: snapshot serialization failed", "error", err)

		return
	}

	vector, err := s.embedder.Embed(ctx, string(serialized))
	if err != nil {
		s.logger.WarnContext(ctx, "Index upsert skipped: embedding failed",
			"conversation_id", conversationID, "error", err)

		return
	}

	err = s.index.Upsert(ctx, conversationID, vector, parsed)
	if err != nil {
		s.logger.WarnContext(ctx, "Index upsert failed",
			"conversation_id", conversationID, "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Snapshot indexed", "conversation_id", conversationID)
}

func snapshotFromObject(object map[string]any) (*models.FormSnapshot, error) {
	serialized, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}

	var snapshot models.FormSnapshot

	err = json.Unmarshal(serialized, &snapshot)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}
