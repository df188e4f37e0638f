package worker

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatclone/internal/chat"
	"chatclone/internal/service/ai"
)

func (m *Manager) runSession(sessionID string, state *sessionState) {
	for {
		select {
		case <-state.stopCh:
			log.Debug().Str("session", shortID(sessionID)).Msg("session stopped")
			return
		case t := <-state.taskCh:
			ret := m.handleTask(sessionID, state, t)
			state.addPending(-1, m.now())
			t.resultCh <- ret
		}
	}
}

func (m *Manager) handleTask(sessionID string, state *sessionState, t task) taskResult {
	state.mu.Lock()
	effects, err := t.apply(state.chat)
	state.mu.Unlock()
	if err != nil {
		log.Debug().Err(err).Str("session", shortID(sessionID)).Str("action", t.name).Msg("action rejected")
		return taskResult{view: state.snapshot(), err: err}
	}

	err = m.runEffects(t.ctx, sessionID, state, effects)
	return taskResult{view: state.snapshot(), err: err}
}

// runEffects performs completion requests one after another. The state lock is not
// held during the call so snapshots can show the session as busy.
func (m *Manager) runEffects(ctx context.Context, sessionID string, state *sessionState, effects []chat.Effect) error {
	var firstErr error
	for len(effects) > 0 {
		eff := effects[0]
		effects = effects[1:]

		complete, ok := eff.(chat.CompleteEffect)
		if !ok {
			continue
		}
		err := m.complete(ctx, sessionID, state, complete)
		if err != nil && firstErr == nil {
			firstErr = err
		}

		state.mu.Lock()
		effects = append(effects, state.chat.Resume()...)
		state.mu.Unlock()
	}
	return firstErr
}

func (m *Manager) complete(ctx context.Context, sessionID string, state *sessionState, eff chat.CompleteEffect) error {
	cctx, cancel := context.WithTimeout(ctx, m.cfg.CompletionTimeout)
	defer cancel()

	logger := log.With().
		Str("session", shortID(sessionID)).
		Str("conversation", eff.ConversationID).
		Bool("auto_reply", eff.AutoReply).
		Int("history", len(eff.Messages)).
		Logger()
	logger.Debug().Msg("requesting completion")

	reply, err := m.completer.Complete(cctx, eff.Messages, m.cfg.Temperature)

	state.mu.Lock()
	defer state.mu.Unlock()
	if err != nil {
		var cerr *ai.CompletionError
		if !errors.As(err, &cerr) {
			err = &ai.CompletionError{Err: err}
		}
		logger.Warn().Err(err).Msg("completion failed")
		if ferr := state.chat.CompletionFailed(eff.ConversationID, err); ferr != nil {
			return errors.Wrap(ferr, "record completion failure")
		}
		return err
	}
	if err := state.chat.CompletionSucceeded(eff.ConversationID, reply.Content); err != nil {
		return errors.Wrap(err, "record completion")
	}
	logger.Debug().Int("reply_len", len(reply.Content)).Msg("completion appended")
	return nil
}
