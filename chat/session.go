// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/search"
)

const (
	banner   = "Chat (baseado no documento). Digite 'sair' para encerrar.\n"
	farewell = "Até logo."
)

// DefaultPrompt is printed before each question.
const DefaultPrompt = "Você: "

// DefaultExitWords end the session, compared case-insensitively.
var DefaultExitWords = []string{"sair", "exit", "quit"}

// Retriever supplies document context for a question.
// *search.Retriever is the production implementation.
type Retriever interface {
	Context(ctx context.Context, question string, k int) (string, error)
}

// Option configures a Session.
type Option func(*Session)

// WithTopK sets the number of chunks retrieved per question.
func WithTopK(k int) Option {
	return func(s *Session) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithPrompt sets the input prompt.
func WithPrompt(prompt string) Option {
	return func(s *Session) {
		s.prompt = prompt
	}
}

// WithExitWords replaces the words that end the session.
func WithExitWords(words ...string) Option {
	return func(s *Session) {
		s.exitWords = make([]string, len(words))
		for i, w := range words {
			s.exitWords[i] = strings.ToLower(w)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session answers questions read line by line from in.
// Turns are independent: no history is kept between questions.
type Session struct {
	retriever Retriever
	model     ai.ChatModel
	in        io.Reader
	out       io.Writer
	topK      int
	prompt    string
	exitWords []string
	logger    *slog.Logger
}

// NewSession creates a chat session.
func NewSession(retriever Retriever, model ai.ChatModel, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		retriever: retriever,
		model:     model,
		in:        in,
		out:       out,
		topK:      search.DefaultK,
		prompt:    DefaultPrompt,
		exitWords: slices.Clone(DefaultExitWords),
		logger:    slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type line struct {
	text string
	err  error
}

// Run reads questions until an exit word, end of input or ctx is done.
// A retrieval or generation failure ends the session with that error.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprint(s.out, banner)

	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)
	go s.readLines(lines, done)

	for {
		fmt.Fprint(s.out, s.prompt)

		var question string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\n"+farewell)
			return nil
		case l := <-lines:
			if l.err != nil {
				if !errors.Is(l.err, io.EOF) {
					s.logger.Warn("failed to read input", "err", l.err)
				}
				fmt.Fprintln(s.out, "\n"+farewell)
				return nil
			}
			question = strings.TrimSpace(l.text)
		}

		if question == "" {
			continue
		}
		if slices.Contains(s.exitWords, strings.ToLower(question)) {
			fmt.Fprintln(s.out, farewell)
			return nil
		}

		answer, err := s.answer(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(s.out, "\n"+farewell)
				return nil
			}
			return err
		}
		fmt.Fprintf(s.out, "\nAssistente: %s\n\n", answer)
	}
}

func (s *Session) answer(ctx context.Context, question string) (string, error) {
	contexto, err := s.retriever.Context(ctx, question, s.topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}
	s.logger.Debug("retrieved context", "chars", len(contexto))

	answer, err := s.model.Generate(ctx, search.FormatPrompt(contexto, question))
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}

// readLines feeds lines from s.in until an error or done is closed.
// A final line without a newline is delivered before io.EOF.
func (s *Session) readLines(lines chan<- line, done <-chan struct{}) {
	reader := bufio.NewReader(s.in)
	for {
		text, err := reader.ReadString('\n')
		if err != nil && text != "" && errors.Is(err, io.EOF) {
			select {
			case lines <- line{text: text}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case lines <- line{err: err}:
			case <-done:
			}
			return
		}
		select {
		case lines <- line{text: text}:
		case <-done:
			return
		}
	}
}
