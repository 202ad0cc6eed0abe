package session

import (
	"fmt"

	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/experience"
)

// Phase is the controller's position in a play-through. The set of phases is
// closed: only the types in this file implement it.
type Phase interface {
	phase()
	String() string
}

type (
	// Idle waits for the first selection.
	Idle struct{}
	// CharacterChosen has a character but no subject yet.
	CharacterChosen struct{}
	// SubjectChosen has a subject; a character may or may not be set.
	SubjectChosen struct{}
	// ModeChosen has all three selections and accepts Generate.
	ModeChosen struct{}
	// Generating waits for the generation response.
	Generating struct{}
	// Narrating plays the narration of question Index (or the lesson).
	Narrating struct{ Index int }
	// Evaluating waits for a transcript answering question Index.
	Evaluating struct{ Index int }
	// Outro plays the closing narration.
	Outro struct{ Success bool }
)

func (Idle) phase()            {}
func (CharacterChosen) phase() {}
func (SubjectChosen) phase()   {}
func (ModeChosen) phase()      {}
func (Generating) phase()      {}
func (Narrating) phase()       {}
func (Evaluating) phase()      {}
func (Outro) phase()           {}

func (Idle) String() string            { return "idle" }
func (CharacterChosen) String() string { return "character_chosen" }
func (SubjectChosen) String() string   { return "subject_chosen" }
func (ModeChosen) String() string      { return "mode_chosen" }
func (Generating) String() string      { return "generating" }
func (p Narrating) String() string     { return fmt.Sprintf("narrating(%d)", p.Index) }
func (p Evaluating) String() string    { return fmt.Sprintf("evaluating(%d)", p.Index) }

func (p Outro) String() string {
	if p.Success {
		return "outro(success)"
	}
	return "outro(retry)"
}

// selecting reports whether p accepts selection changes.
func selecting(p Phase) bool {
	switch p.(type) {
	case Idle, CharacterChosen, SubjectChosen, ModeChosen:
		return true
	}
	return false
}

// Selection is what the player has chosen so far. Zero values mean unset.
type Selection struct {
	Character catalog.Character
	Subject   catalog.Subject
	Mode      experience.Mode
}

// Complete reports whether character, subject and mode are all set.
func (s Selection) Complete() bool {
	return s.Character.ID != "" && s.Subject.ID != "" && s.Mode != ""
}

// phase derives the selection phase.
func (s Selection) phase() Phase {
	switch {
	case s.Complete():
		return ModeChosen{}
	case s.Subject.ID != "":
		return SubjectChosen{}
	case s.Character.ID != "":
		return CharacterChosen{}
	default:
		return Idle{}
	}
}

// Feedback is the result shown after an answer is scored.
type Feedback struct {
	Correct bool
	Message string
	// NearMiss marks a wrong answer that sounded close to an accepted one.
	NearMiss bool
}

// State is a snapshot of a session. It is a copy; mutating it has no effect
// on the controller.
type State struct {
	SessionID       string
	UserID          string
	Phase           Phase
	Selection       Selection
	Experience      *experience.Experience
	CurrentQuestion int
	CorrectAnswers  int
	Feedback        *Feedback
	Listening       bool
	// Err is the last user-visible error, cleared by the next Generate.
	Err string
}

// TotalQuestions is the number of questions in the current experience.
func (s State) TotalQuestions() int {
	if s.Experience == nil {
		return 0
	}
	return len(s.Experience.Questions)
}
