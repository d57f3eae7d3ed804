package models

import (
	"time"
)

type ChatSender string

const (
	ChatSenderSelf         ChatSender = "self"
	ChatSenderCounterparty ChatSender = "counterparty"
)

// ChatMessage is one entry in the in-ride transcript. The transcript is
// append-only for the life of the session.
type ChatMessage struct {
	Sender    ChatSender `json:"sender"`
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
}
