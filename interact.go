package unwrapr

/* The interaction seam: questions extraction can ask, and batch answers. */

// SingleEntryChoice says what to do when an archive holds exactly one
// top-level entry and the wrapper directory may be unwanted.
type SingleEntryChoice uint8

const (
	// ChoiceInside keeps the wrapper: the entry stays inside a new directory
	// named after the archive.
	ChoiceInside SingleEntryChoice = iota
	// ChoiceRename drops the wrapper and renames the entry after the archive.
	ChoiceRename
	// ChoiceHere drops the wrapper and keeps the entry's own name.
	ChoiceHere
)

// Prompter answers the questions an extraction can raise mid-flight. A nil
// Prompter in the Config selects BatchPrompter. Interactive front ends
// implement this with real prompts.
type Prompter interface {
	// SingleEntry is asked once per archive that extracts to a single
	// top-level entry.
	SingleEntry(archive, entry string) SingleEntryChoice
	// ConfirmOverwrite is asked before replacing an existing path during a
	// flat extraction or a ChoiceHere move. Returning false skips the entry.
	ConfirmOverwrite(path string) bool
}

// BatchPrompter is the non-interactive policy: single entries keep their
// wrapper directory, existing files are never overwritten.
type BatchPrompter struct{}

func (BatchPrompter) SingleEntry(string, string) SingleEntryChoice { return ChoiceInside }
func (BatchPrompter) ConfirmOverwrite(string) bool                 { return false }

// interactState tracks which question, if any, is pending. Only one question
// is ever outstanding.
type interactState uint8

const (
	stateIdle interactState = iota
	stateAwaitingSingleEntry
	stateAwaitingOverwrite
)

// interaction serializes prompts and tracks the pending question.
type interaction struct {
	prompter Prompter
	state    interactState
}

func newInteraction(prompter Prompter) *interaction {
	if prompter == nil {
		prompter = BatchPrompter{}
	}

	return &interaction{prompter: prompter, state: stateIdle}
}

func (i *interaction) singleEntry(archive, entry string) SingleEntryChoice {
	i.state = stateAwaitingSingleEntry
	defer func() { i.state = stateIdle }()

	return i.prompter.SingleEntry(archive, entry)
}

func (i *interaction) confirmOverwrite(path string) bool {
	i.state = stateAwaitingOverwrite
	defer func() { i.state = stateIdle }()

	return i.prompter.ConfirmOverwrite(path)
}
