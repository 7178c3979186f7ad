package unwrapr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingPrompter struct {
	states []interactState
	owner  *interaction
	choice SingleEntryChoice
	answer bool
}

func (p *recordingPrompter) SingleEntry(string, string) SingleEntryChoice {
	p.states = append(p.states, p.owner.state)
	return p.choice
}

func (p *recordingPrompter) ConfirmOverwrite(string) bool {
	p.states = append(p.states, p.owner.state)
	return p.answer
}

func TestBatchPrompterDefaults(t *testing.T) {
	t.Parallel()

	// The batch answers: wrap single entries, never overwrite.
	batch := BatchPrompter{}
	assert.Equal(t, ChoiceInside, batch.SingleEntry("a.tar.gz", "entry"))
	assert.False(t, batch.ConfirmOverwrite("/somewhere/file"))

	// nil Prompter selects the batch behavior.
	ask := newInteraction(nil)
	assert.Equal(t, ChoiceInside, ask.singleEntry("a.tar.gz", "entry"))
	assert.False(t, ask.confirmOverwrite("/somewhere/file"))
}

func TestInteractionStates(t *testing.T) {
	t.Parallel()

	prompter := &recordingPrompter{choice: ChoiceHere, answer: true}
	ask := newInteraction(prompter)
	prompter.owner = ask

	assert.Equal(t, stateIdle, ask.state)

	assert.Equal(t, ChoiceHere, ask.singleEntry("a.zip", "entry"))
	assert.Equal(t, stateIdle, ask.state)

	assert.True(t, ask.confirmOverwrite("/somewhere/file"))
	assert.Equal(t, stateIdle, ask.state)

	// Each question was asked with the matching state pending.
	assert.Equal(t, []interactState{stateAwaitingSingleEntry, stateAwaitingOverwrite}, prompter.states)
}
