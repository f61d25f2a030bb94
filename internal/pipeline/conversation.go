package pipeline

import (
	"sync"

	"github.com/voxrelay/voxrelay/pkg/provider/llm"
)

// defaultMaxMessages bounds the in-memory context handed to generation.
// Older exchanges fall off the front; the system prompt is supplied
// separately and never evicted.
const defaultMaxMessages = 20

// Conversation holds the rolling message context for one session. Safe for
// concurrent use.
type Conversation struct {
	mu       sync.Mutex
	messages []llm.Message
	max      int
}

// NewConversation creates a Conversation keeping at most max messages.
// max <= 0 selects the default of 20.
func NewConversation(max int) *Conversation {
	if max <= 0 {
		max = defaultMaxMessages
	}
	return &Conversation{max: max}
}

// Append adds a message, evicting the oldest when over capacity.
func (c *Conversation) Append(m llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
	if len(c.messages) > c.max {
		overflow := len(c.messages) - c.max
		c.messages = append(c.messages[:0:0], c.messages[overflow:]...)
	}
}

// Messages returns a copy of the current context, oldest first.
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of retained messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
