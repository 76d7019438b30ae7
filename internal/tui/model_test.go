package tui

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	fragments []string
	err       error
	startErr  error
	questions []string
}

func (f *fakeAsker) StreamQuery(_ context.Context, question string) (iter.Seq2[string, error], error) {
	f.questions = append(f.questions, question)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return func(yield func(string, error) bool) {
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}, nil
}

// drive runs cmd and every command it produces until the model goes quiet.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 1000, "model did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg:
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, nc := m.Update(msg)
			m = next.(Model)
			queue = append(queue, nc)
		}
	}
	return m
}

func newReadyModel(t *testing.T, asker Asker) Model {
	t.Helper()
	m := New(context.Background(), asker, "3 entries", nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func submit(t *testing.T, m Model, question string) Model {
	t.Helper()
	m.input.SetValue(question)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return drive(t, next.(Model), cmd)
}

func TestModel_StreamsAnswerIntoTranscript(t *testing.T) {
	asker := &fakeAsker{fragments: []string{"الفاعل ", "مرفوع"}}
	m := newReadyModel(t, asker)

	m = submit(t, m, "  ما حكم الفاعل؟ ")

	assert.Equal(t, []string{"ما حكم الفاعل؟"}, asker.questions)
	assert.False(t, m.streaming)
	assert.Equal(t, "Done.", m.status)
	assert.Contains(t, m.Transcript(), "ما حكم الفاعل؟")
	assert.Contains(t, m.Transcript(), "الفاعل مرفوع")
	assert.Empty(t, m.input.Value())
}

func TestModel_ErrorShowsGenericMessage(t *testing.T) {
	asker := &fakeAsker{err: errors.New("status 500: internal detail")}
	m := newReadyModel(t, asker)

	m = submit(t, m, "question")

	assert.Equal(t, rag.ErrorMessage, m.status)
	assert.Contains(t, m.Transcript(), rag.ErrorMessage)
	assert.NotContains(t, m.Transcript(), "internal detail")
}

func TestModel_StartErrorShowsGenericMessage(t *testing.T) {
	m := newReadyModel(t, &fakeAsker{startErr: errors.New("boom")})
	m = submit(t, m, "question")
	assert.False(t, m.streaming)
	assert.Contains(t, m.Transcript(), rag.ErrorMessage)
}

func TestModel_PartialAnswerKeptOnError(t *testing.T) {
	asker := &fakeAsker{fragments: []string{"partial"}, err: errors.New("cut")}
	m := newReadyModel(t, asker)
	m = submit(t, m, "question")
	assert.Contains(t, m.Transcript(), "partial")
	assert.Equal(t, rag.ErrorMessage, m.status)
}

func TestModel_EmptyQuestionIgnored(t *testing.T) {
	asker := &fakeAsker{}
	m := newReadyModel(t, asker)
	m = submit(t, m, "   ")
	assert.Empty(t, asker.questions)
	assert.Equal(t, "No questions yet.", m.Transcript())
}

func TestModel_StaleMessagesIgnored(t *testing.T) {
	m := newReadyModel(t, &fakeAsker{fragments: []string{"a"}})
	m = submit(t, m, "question")
	before := m.Transcript()

	next, _ := m.Update(fragmentMsg{id: m.streamID - 1, text: "stale"})
	m = next.(Model)
	next, _ = m.Update(streamDoneMsg{id: m.streamID - 1, err: errors.New("stale")})
	m = next.(Model)

	assert.Equal(t, before, m.Transcript())
	assert.Equal(t, "Done.", m.status)
}

func TestModel_CtrlCQuits(t *testing.T) {
	m := newReadyModel(t, &fakeAsker{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := New(context.Background(), &fakeAsker{}, "", nil)
	assert.Equal(t, "Loading...", m.View())
}

func TestModel_ViewShowsSummaryAndTranscript(t *testing.T) {
	m := newReadyModel(t, &fakeAsker{fragments: []string{"answer"}})
	m = submit(t, m, "question")
	view := m.View()
	assert.True(t, strings.Contains(view, "Bayan"))
	assert.True(t, strings.Contains(view, "3 entries"))
}
