package domain

// CandidateMessage is a search hit from the mail provider. Only the ids are
// known until the message is fetched.
type CandidateMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// RawMessage is a fetched RFC 822 message together with the provider's
// receive time (epoch milliseconds, zero when unknown).
type RawMessage struct {
	ID           string
	Raw          []byte
	InternalDate int64
}

// NormalizedContent holds the fields of a parsed message that the
// extraction pipeline needs
type NormalizedContent struct {
	Subject     string
	FromName    string
	FromAddress string
	PlainText   string
	HTML        string
	// Text is the prompt-ready body: the normalized HTML part, or the
	// plain text part when the message has no HTML.
	Text   string
	SentAt *int64 // epoch seconds
}

// Issuer is the sender display name, falling back to the address.
func (c *NormalizedContent) Issuer() string {
	if c.FromName != "" {
		return c.FromName
	}
	return c.FromAddress
}
