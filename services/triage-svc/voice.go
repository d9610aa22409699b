package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/haresh-sai06/rapid100/pkg/common"
)

const (
	greetingPrompt = "Emergency services. Please describe your emergency clearly and calmly."
	retryPrompt    = "Please describe your emergency. What services do you need?"
	errorSpoken    = "We are experiencing technical difficulties. If you need immediate assistance, please call back. Goodbye."
	closingSpoken  = "Help is on the way. Stay safe and we will end the call when help arrives."
)

// respondTwiML renders a call-flow document, falling back to the error
// document if rendering itself fails.
func respondTwiML(c echo.Context, doc *twimlDocument) error {
	body, err := doc.render()
	if err != nil {
		slog.Error("failed to render call-flow response", "error", err)
		fallback, _ := errorTwiML().render()
		return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(fallback))
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(body))
}

func errorTwiML() *twimlDocument {
	doc := &twimlDocument{}
	return doc.say(errorSpoken).hangup()
}

// handleVoice greets the caller and opens the first speech gather.
func (s *Server) handleVoice(c echo.Context) error {
	callSid := strings.TrimSpace(c.FormValue("CallSid"))
	if callSid == "" {
		slog.Warn("voice webhook without CallSid")
		return respondTwiML(c, errorTwiML())
	}
	slog.Info("incoming emergency call", "call_sid", callSid, "from", c.FormValue("From"))

	doc := &twimlDocument{}
	doc.gatherSpeech("/voice/process", greetingPrompt, s.cfg.SpeechTimeout)
	doc.say("I didn't catch that. Please state your emergency now.")
	doc.gatherSpeech("/voice/process", retryPrompt, s.cfg.SpeechTimeout)
	doc.say(errorSpoken).hangup()
	return respondTwiML(c, doc)
}

// transcriptFromForm prefers the finalized transcription and falls back to
// the provider's partial result.
func transcriptFromForm(c echo.Context) string {
	if t := c.FormValue("SpeechResult"); strings.TrimSpace(t) != "" {
		return t
	}
	return c.FormValue("UnstableSpeechResult")
}

// handleVoiceProcess runs the first triaged turn.
func (s *Server) handleVoiceProcess(c echo.Context) error {
	callSid := strings.TrimSpace(c.FormValue("CallSid"))
	if callSid == "" {
		slog.Warn("process webhook without CallSid")
		return respondTwiML(c, errorTwiML())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.HTTPDeadline)
	defer cancel()

	result := s.sessions.FirstTurn(ctx, callSid, c.FormValue("From"), c.FormValue("To"), transcriptFromForm(c))
	return respondTwiML(c, s.turnTwiML(result))
}

// handleVoiceFollowup runs a danger-question answer turn.
func (s *Server) handleVoiceFollowup(c echo.Context) error {
	callSid := strings.TrimSpace(c.FormValue("CallSid"))
	if callSid == "" {
		slog.Warn("followup webhook without CallSid")
		return respondTwiML(c, errorTwiML())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.HTTPDeadline)
	defer cancel()

	result := s.sessions.Followup(ctx, callSid, transcriptFromForm(c))
	return respondTwiML(c, s.turnTwiML(result))
}

// handleVoiceStatus receives provider call lifecycle notifications.
func (s *Server) handleVoiceStatus(c echo.Context) error {
	callSid := strings.TrimSpace(c.FormValue("CallSid"))
	if callSid == "" {
		return c.NoContent(http.StatusBadRequest)
	}

	callStatus := c.FormValue("CallStatus")
	slog.Info("call status notification", "call_sid", callSid, "status", callStatus, "duration", c.FormValue("CallDuration"))
	s.sessions.HandleStatus(callSid, callStatus)

	doc := &twimlDocument{}
	return respondTwiML(c, doc)
}

// turnTwiML translates a state-machine result into the next call-flow leg.
func (s *Server) turnTwiML(result *TurnResult) *twimlDocument {
	doc := &twimlDocument{}

	switch {
	case result.Reprompt:
		doc.gatherSpeech("/voice/process", result.Spoken, s.cfg.SpeechTimeout)
		doc.say(giveUpSpoken).hangup()

	case result.Phase == common.StateAwaitingFollowup:
		doc.say(result.Spoken)
		doc.pause(1)
		doc.gatherSpeech("/voice/followup", result.DangerQuestion, 5)
		doc.say(closingSpoken).hangup()

	default:
		doc.say(result.Spoken)
		doc.pause(1)
		doc.say(closingSpoken)
		doc.hangup()
	}
	return doc
}
