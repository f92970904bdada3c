package executor

import (
	"context"
	"errors"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/gforms"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
)

// runExtract resolves the task's ownership chain: task, conversation, user,
// and finally the Google credential pair. Each missing link is terminal for
// this task; there is no retry.
func (s *Service) runExtract(ctx context.Context, state *taskState) *taskState {
	task, err := s.persistence.TaskByID(ctx, state.taskID)
	if err != nil {
		if errors.Is(err, persistence.ErrTaskNotFound) {
			return state.fail(ErrorKindTaskNotFound, "task "+state.taskID+" does not exist")
		}

		return state.fail(ErrorKindStorageFailure, err.Error())
	}

	state.task = task

	conversation, err := s.persistence.ConversationByID(ctx, task.ConversationID)
	if err != nil {
		if errors.Is(err, persistence.ErrConversationNotFound) {
			return state.fail(ErrorKindConversationNotFound, "conversation "+task.ConversationID+" does not exist")
		}

		return state.fail(ErrorKindStorageFailure, err.Error())
	}

	state.conversation = conversation

	user, err := s.persistence.UserByID(ctx, conversation.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return state.fail(ErrorKindUserNotFound, "user "+conversation.UserID+" does not exist")
		}

		return state.fail(ErrorKindStorageFailure, err.Error())
	}

	state.user = user

	if !user.HasGoogleCredentials() {
		s.logger.WarnContext(ctx, "User has no Google credentials",
			"task_id", task.ID, "user_id", user.ID)

		return state.fail(ErrorKindMissingCredentials, "user has not connected a Google account")
	}

	state.credentials = gforms.Credentials{
		AccessToken:  user.GoogleAccessToken,
		RefreshToken: user.GoogleRefreshToken,
	}
	if user.TokenExpiry != nil {
		state.credentials.Expiry = *user.TokenExpiry
	}

	s.logger.InfoContext(ctx, "Task context extracted",
		"task_id", task.ID,
		"conversation_id", conversation.ID,
		"user_id", user.ID)

	return state
}
