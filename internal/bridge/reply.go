package bridge

// ReplyType identifies the kind of outbound reply.
type ReplyType string

const (
	ReplyText  ReplyType = "TEXT"
	ReplyError ReplyType = "ERROR"
)

// Reply is the uniform value a bot hands back to the router.
// An empty Content on a TEXT reply means there is nothing to send.
type Reply struct {
	Type    ReplyType `json:"type"`
	Content string    `json:"content,omitempty"`
}

func TextReply(content string) Reply {
	return Reply{Type: ReplyText, Content: content}
}

func ErrorReply(content string) Reply {
	return Reply{Type: ReplyError, Content: content}
}

// Empty reports whether the reply carries no payload.
func (r Reply) Empty() bool {
	return r.Content == ""
}
