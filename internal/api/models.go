package api

import (
	"github.com/example/wordwindow/internal/session"
	"github.com/example/wordwindow/internal/window"
	"github.com/example/wordwindow/pkg/models"
)

// InitRequest opens a personal or assignment session
type InitRequest struct {
	UserID       string            `json:"user_id" validate:"required,max=200"`
	Language     string            `json:"language" validate:"required,max=50"`
	AssignmentID string            `json:"assignment_id,omitempty" validate:"omitempty,max=100"`
	Settings     session.Overrides `json:"settings"`
}

// InitResponse describes the opened session
type InitResponse struct {
	SessionID string           `json:"session_id"`
	Settings  session.Settings `json:"settings"`
	Window    window.Snapshot  `json:"window"`
}

// AssignmentProgressRequest asks for one student's standing on an assignment
type AssignmentProgressRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required,max=100"`
	UserID       string `json:"user_id" validate:"required,max=200"`
}

// SessionRequest addresses an open session
type SessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// RandomWordsRequest asks for a sample of the window
type RandomWordsRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Count     int    `json:"count" validate:"gte=0,lte=100"`
}

// WordRequest names one word of the pool
type WordRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Word      string `json:"word" validate:"required"`
}

// AnswerRequest grades an answer for one word
type AnswerRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Word      string `json:"word" validate:"required"`
	Answer    string `json:"answer"`
}

// Card is a word together with the side shown to the learner
type Card struct {
	models.Word
	Prompt string `json:"prompt"`
}

// WordsResponse lists words
type WordsResponse struct {
	Words []Card `json:"words"`
}

// AnswerResponse reports the grading of an answer
type AnswerResponse struct {
	window.Outcome
	Expected string `json:"expected"`
}

// SaveResponse confirms a save
type SaveResponse struct {
	Saved bool `json:"saved"`
}
