package gmail

// ListPage is one page of message ids from users.messages.list.
type ListPage struct {
	IDs                []string
	NextPageToken      string
	ResultSizeEstimate int64
}

// Attachment describes one attachment part of a message.
type Attachment struct {
	MessageID    string `json:"messageId"`
	PartID       string `json:"partId"`
	AttachmentID string `json:"attachmentId"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}
