package main

import (
	"encoding/xml"
)

// Minimal call-flow XML vocabulary: speak, pause, gather speech with an
// action URL, hang up. Verbs marshal in slice order.

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type twimlGather struct {
	XMLName       xml.Name  `xml:"Gather"`
	Input         string    `xml:"input,attr"`
	Timeout       int       `xml:"timeout,attr"`
	SpeechTimeout int       `xml:"speechTimeout,attr,omitempty"`
	Action        string    `xml:"action,attr"`
	Method        string    `xml:"method,attr"`
	Language      string    `xml:"language,attr,omitempty"`
	Say           *twimlSay `xml:"Say,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDocument struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

const twimlVoice = "alice"

func (d *twimlDocument) say(text string) *twimlDocument {
	d.Verbs = append(d.Verbs, twimlSay{Voice: twimlVoice, Text: text})
	return d
}

func (d *twimlDocument) pause(seconds int) *twimlDocument {
	d.Verbs = append(d.Verbs, twimlPause{Length: seconds})
	return d
}

func (d *twimlDocument) gatherSpeech(action, prompt string, timeout int) *twimlDocument {
	d.Verbs = append(d.Verbs, twimlGather{
		Input:         "speech",
		Timeout:       timeout,
		SpeechTimeout: 5,
		Action:        action,
		Method:        "POST",
		Language:      "en-US",
		Say:           &twimlSay{Voice: twimlVoice, Text: prompt},
	})
	return d
}

func (d *twimlDocument) hangup() *twimlDocument {
	d.Verbs = append(d.Verbs, twimlHangup{})
	return d
}

func (d *twimlDocument) render() (string, error) {
	body, err := xml.MarshalIndent(d, "", "    ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(body), nil
}
