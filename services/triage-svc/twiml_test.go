package main

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestTwimlRenderShapes(t *testing.T) {
	doc := &twimlDocument{}
	doc.say("Help is coming!")
	doc.pause(1)
	doc.gatherSpeech("/voice/followup", "Is it spreading?", 5)
	doc.say("Goodbye.")
	doc.hangup()

	out, err := doc.render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if !strings.HasPrefix(out, xml.Header) {
		t.Error("missing XML header")
	}
	for _, want := range []string{
		"<Response>",
		`<Say voice="alice">Help is coming!</Say>`,
		`<Pause length="1">`,
		`action="/voice/followup"`,
		`input="speech"`,
		`timeout="5"`,
		"Is it spreading?",
		"<Hangup>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered document missing %q:\n%s", want, out)
		}
	}

	// The document must stay well-formed XML.
	var parsed struct {
		XMLName xml.Name `xml:"Response"`
	}
	if err := xml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Errorf("rendered document is not valid XML: %v", err)
	}
}

func TestTwimlVerbOrder(t *testing.T) {
	doc := &twimlDocument{}
	doc.say("first")
	doc.gatherSpeech("/voice/process", "second", 5)

	out, err := doc.render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Error("verbs must render in insertion order")
	}
}

func TestTwimlErrorDocument(t *testing.T) {
	out, err := errorTwiML().render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "technical difficulties") {
		t.Errorf("error document must apologize: %s", out)
	}
	if !strings.Contains(out, "<Hangup>") {
		t.Errorf("error document must hang up: %s", out)
	}
}

func TestTwimlEscapesSpeech(t *testing.T) {
	doc := &twimlDocument{}
	doc.say(`fire at <Warehouse & Sons>`)
	out, err := doc.render()
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(out, "<Warehouse") {
		t.Error("speech text must be XML-escaped")
	}
	if !strings.Contains(out, "&amp;") {
		t.Error("ampersand not escaped")
	}
}
