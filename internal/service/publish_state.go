package service

import "sync"

// PublishState is the single slot remembering which message currently
// holds the published leaderboard. It lives in memory only; after a restart
// the next publish creates a fresh message.
type PublishState struct {
	mu        sync.Mutex
	channelID string
	messageID string
}

// NewPublishState returns an empty slot
func NewPublishState() *PublishState {
	return &PublishState{}
}

// MessageID returns the stored message id for channelID, if any
func (p *PublishState) MessageID(channelID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messageID == "" || p.channelID != channelID {
		return "", false
	}
	return p.messageID, true
}

// Set records messageID as the live leaderboard message in channelID
func (p *PublishState) Set(channelID, messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channelID = channelID
	p.messageID = messageID
}

// ClearIf empties the slot if it still holds messageID
func (p *PublishState) ClearIf(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messageID == messageID {
		p.channelID = ""
		p.messageID = ""
	}
}
