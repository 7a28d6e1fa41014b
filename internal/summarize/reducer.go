// Package summarize folds a chunked document into a single running summary,
// one chat call per chunk, in document order.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/llm"
	"github.com/akademi4eg/aka-assistant/internal/logger"
)

// DefaultModel is the chat model used when Options.Model is empty.
const DefaultModel = "gpt-3.5-turbo"

const (
	systemPrompt = "You are analyzing scientific papers and providing summaries of them. " +
		"Document is split in parts that are sent to you one by one."
	summaryPrefix     = "This is your summary of document so far:\n"
	updateInstruction = "Provide summary of the whole document, keep it within 1000 words. " +
		"Do not summarize each part individually, just update your current summary " +
		"based on information in new part of the document."
	partPrefix = "New part of document:\n"
)

// Chat is the chat collaborator.
type Chat interface {
	Chat(ctx context.Context, model string, messages []llm.Message) (*llm.ChatResult, error)
}

// State is the reducer accumulator. Summary is nil until the first fold succeeds.
type State struct {
	Summary    *string `json:"summary,omitempty"`
	UsedTokens int     `json:"used_tokens"`
	Model      string  `json:"model"`
}

// Checkpoint is called after every successful fold with the new state and the
// number of chunks folded so far. A checkpoint error stops Run.
type Checkpoint func(ctx context.Context, state State, done int) error

// Options configures a Reducer.
type Options struct {
	Model      string
	Chat       Chat
	Logger     logger.Logger
	Checkpoint Checkpoint
}

// Reducer is not safe for concurrent use; folds are strictly sequential.
type Reducer struct {
	chat       Chat
	log        logger.Logger
	checkpoint Checkpoint

	chunks [][]string
	next   int
	state  State
}

// New returns a reducer over chunks with an empty state.
func New(opts Options, chunks [][]string) (*Reducer, error) {
	if opts.Chat == nil {
		return nil, errors.NewInvalidRequest("chat collaborator is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Reducer{
		chat:       opts.Chat,
		log:        log.With("model", model),
		checkpoint: opts.Checkpoint,
		chunks:     chunks,
		state:      State{Model: model},
	}, nil
}

// Resume restores a partial state in which the first done chunks are already
// folded. The state model must match the reducer model.
func (r *Reducer) Resume(state State, done int) error {
	if done < 0 || done > len(r.chunks) {
		return errors.NewInvalidRequest(fmt.Sprintf("resume point %d out of range [0, %d]", done, len(r.chunks)))
	}
	if state.Model != "" && state.Model != r.state.Model {
		return errors.NewInvalidRequest(fmt.Sprintf("state model %q does not match %q", state.Model, r.state.Model))
	}
	if done > 0 && state.Summary == nil {
		return errors.NewInvalidRequest("resumed state has no summary")
	}
	r.state = State{Summary: cloneString(state.Summary), UsedTokens: state.UsedTokens, Model: r.state.Model}
	r.next = done
	return nil
}

// State returns a copy of the accumulator.
func (r *Reducer) State() State {
	s := r.state
	s.Summary = cloneString(r.state.Summary)
	return s
}

// Done returns the number of chunks folded.
func (r *Reducer) Done() int { return r.next }

// Total returns the number of chunks.
func (r *Reducer) Total() int { return len(r.chunks) }

// Complete reports whether every chunk has been folded.
func (r *Reducer) Complete() bool { return r.next >= len(r.chunks) }

// Messages builds the chat request for folding chunk into the current state.
func (r *Reducer) Messages(chunk []string) []llm.Message {
	msgs := make([]llm.Message, 0, 4)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	if r.state.Summary != nil {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: summaryPrefix + *r.state.Summary},
			llm.Message{Role: llm.RoleUser, Content: updateInstruction},
		)
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: partPrefix + strings.Join(chunk, " ")})
	return msgs
}

// Fold sends one chunk to the chat collaborator. On success the running
// summary is replaced and the reported tokens are added; on failure the state
// is left as it was.
func (r *Reducer) Fold(ctx context.Context, chunk []string) error {
	res, err := r.chat.Chat(ctx, r.state.Model, r.Messages(chunk))
	if err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewCollaboratorFailure("chat", err)
	}
	if res == nil {
		return errors.NewParse("chat", "empty response")
	}
	if res.Usage.TotalTokens < 0 {
		return errors.NewParse("chat", fmt.Sprintf("negative total_tokens %d", res.Usage.TotalTokens))
	}

	summary := res.Message.Content
	r.state.Summary = &summary
	r.state.UsedTokens += res.Usage.TotalTokens
	return nil
}

// Run folds the remaining chunks in order and returns how many it folded in
// this call. Cancellation is checked between folds; a cancelled run keeps the
// state of the last completed fold and returns ctx.Err().
func (r *Reducer) Run(ctx context.Context) (int, error) {
	folded := 0
	for r.next < len(r.chunks) {
		if err := ctx.Err(); err != nil {
			r.log.Info("summarization interrupted", "done", r.next, "total", len(r.chunks))
			return folded, err
		}

		chunk := r.chunks[r.next]
		if err := r.Fold(ctx, chunk); err != nil {
			r.log.Warn("fold failed", "chunk", r.next, "error", err)
			return folded, err
		}
		r.next++
		folded++
		r.log.Debug("folded chunk", "chunk", r.next, "total", len(r.chunks), "words", len(chunk), "used_tokens", r.state.UsedTokens)

		if r.checkpoint != nil {
			if err := r.checkpoint(ctx, r.State(), r.next); err != nil {
				return folded, err
			}
		}
	}
	return folded, nil
}

// Summary folds any remaining chunks and returns the final summary. Once
// complete, later calls return the same text without collaborator calls. An
// empty document has an empty summary.
func (r *Reducer) Summary(ctx context.Context) (string, error) {
	if !r.Complete() {
		if _, err := r.Run(ctx); err != nil {
			return "", err
		}
	}
	if r.state.Summary == nil {
		return "", nil
	}
	return *r.state.Summary, nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
