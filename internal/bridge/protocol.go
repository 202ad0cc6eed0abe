// Package bridge connects a browser to a session controller over a websocket.
//
// The browser is a thin terminal: it forwards drops, button presses, speech
// transcripts and playback completion, and plays whatever the server asks it
// to play. All session logic runs server-side.
package bridge

import (
	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/session"
)

// Client message types.
const (
	MsgSelectCharacter = "select_character"
	MsgSelectSubject   = "select_subject"
	MsgSelectMode      = "select_mode"
	MsgGenerate        = "generate"
	MsgToggleListen    = "toggle_listen"
	MsgTranscript      = "transcript"
	MsgPlaybackEnded   = "playback_ended"
	MsgPlaybackFailed  = "playback_failed"
	MsgBack            = "back"
	MsgReset           = "reset"
)

// Server message types.
const (
	MsgState = "state"
	MsgPlay  = "play"
	MsgStop  = "stop"
	MsgCue   = "cue"
	MsgError = "error"
)

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Text   string `json:"text,omitempty"`
	ClipID string `json:"clip_id,omitempty"`
}

// ServerMessage is sent to the browser. Fields are set per Type.
type ServerMessage struct {
	Type    string     `json:"type"`
	State   *StateView `json:"state,omitempty"`
	ClipID  string     `json:"clip_id,omitempty"`
	Kind    string     `json:"kind,omitempty"`
	Text    string     `json:"text,omitempty"`
	Audio   string     `json:"audio,omitempty"`
	Correct *bool      `json:"correct,omitempty"`
	Message string     `json:"message,omitempty"`
}

// StateView is the browser's view of a session.
type StateView struct {
	SessionID       string             `json:"session_id"`
	Phase           string             `json:"phase"`
	Index           int                `json:"index"`
	OutroSuccess    bool               `json:"outro_success,omitempty"`
	Character       *catalog.Character `json:"character,omitempty"`
	Subject         *catalog.Subject   `json:"subject,omitempty"`
	Mode            string             `json:"mode,omitempty"`
	Title           string             `json:"title,omitempty"`
	Question        string             `json:"question,omitempty"`
	CurrentQuestion int                `json:"current_question"`
	TotalQuestions  int                `json:"total_questions"`
	CorrectAnswers  int                `json:"correct_answers"`
	Feedback        *FeedbackView      `json:"feedback,omitempty"`
	Listening       bool               `json:"listening"`
	Error           string             `json:"error,omitempty"`
}

// FeedbackView is the result of the last scored answer.
type FeedbackView struct {
	Correct  bool   `json:"correct"`
	Message  string `json:"message"`
	NearMiss bool   `json:"near_miss,omitempty"`
}

// Phase names used in StateView.Phase.
const (
	PhaseIdle            = "idle"
	PhaseCharacterChosen = "character_chosen"
	PhaseSubjectChosen   = "subject_chosen"
	PhaseModeChosen      = "mode_chosen"
	PhaseGenerating      = "generating"
	PhaseNarrating       = "narrating"
	PhaseEvaluating      = "evaluating"
	PhaseOutro           = "outro"
)

// View converts a session snapshot for the browser.
func View(s session.State) *StateView {
	v := &StateView{
		SessionID:       s.SessionID,
		Mode:            string(s.Selection.Mode),
		CurrentQuestion: s.CurrentQuestion,
		TotalQuestions:  s.TotalQuestions(),
		CorrectAnswers:  s.CorrectAnswers,
		Listening:       s.Listening,
		Error:           s.Err,
	}

	switch p := s.Phase.(type) {
	case session.Idle:
		v.Phase = PhaseIdle
	case session.CharacterChosen:
		v.Phase = PhaseCharacterChosen
	case session.SubjectChosen:
		v.Phase = PhaseSubjectChosen
	case session.ModeChosen:
		v.Phase = PhaseModeChosen
	case session.Generating:
		v.Phase = PhaseGenerating
	case session.Narrating:
		v.Phase, v.Index = PhaseNarrating, p.Index
	case session.Evaluating:
		v.Phase, v.Index = PhaseEvaluating, p.Index
	case session.Outro:
		v.Phase, v.OutroSuccess = PhaseOutro, p.Success
	}

	if ch := s.Selection.Character; ch.ID != "" {
		v.Character = &ch
	}
	if sub := s.Selection.Subject; sub.ID != "" {
		v.Subject = &sub
	}
	if exp := s.Experience; exp != nil {
		v.Title = exp.Title
		if s.CurrentQuestion < len(exp.Questions) {
			v.Question = exp.Questions[s.CurrentQuestion].Text
		}
	}
	if fb := s.Feedback; fb != nil {
		v.Feedback = &FeedbackView{Correct: fb.Correct, Message: fb.Message, NearMiss: fb.NearMiss}
	}
	return v
}
