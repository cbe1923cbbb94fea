package core

import "github.com/book-expert/events"

// PresentationRequestedEvent asks the service to produce a presentation for a topic.
type PresentationRequestedEvent struct {
	Header   events.EventHeader `json:"header"`
	Topic    string             `json:"topic"`
	Strategy string             `json:"strategy,omitempty"`
	Device   string             `json:"device,omitempty"`
	Voice    string             `json:"voice,omitempty"`
}

// PresentationGeneratedEvent is the reply to a PresentationRequestedEvent. OutlineKey and SpeechKey
// name objects in the artifact store. Error is set when the request could not be served.
type PresentationGeneratedEvent struct {
	Header     events.EventHeader `json:"header"`
	Title      string             `json:"title"`
	OutlineKey string             `json:"outline_key"`
	SpeechKey  string             `json:"speech_key"`
	Cached     bool               `json:"cached"`
	Warnings   []string           `json:"warnings,omitempty"`
	Error      string             `json:"error,omitempty"`
}
