// Package chatmessage is the sample topic type used by cmd/publisher and
// cmd/subscriber to exercise typesupport.StructTypeSupport end to end.
package chatmessage

// ChatMessage is keyed by UserId: every user is a distinct topic instance,
// and successive messages from the same user are successive samples of it.
type ChatMessage struct {
	UserId int32  `rtps:"key"`
	Text   string
}
