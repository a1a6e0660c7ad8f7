package model

// MessageChunk is the uniform unit emitted by provider clients, one per
// network event in streaming mode or one per request otherwise.
type MessageChunk struct {
	ID      string
	Model   string
	Choices []Choice
}

// Choice carries either a partial delta (streaming) or a complete message
// (non-streaming), never both.
type Choice struct {
	Index        int
	Delta        *Message
	Message      *Message
	FinishReason string
}

// DeltaText returns the text carried by the first choice's delta, or the
// complete message when no delta is present.
func (c *MessageChunk) DeltaText() string {
	if len(c.Choices) == 0 {
		return ""
	}
	choice := c.Choices[0]
	if choice.Delta != nil {
		return choice.Delta.Text()
	}
	if choice.Message != nil {
		return choice.Message.Text()
	}
	return ""
}
