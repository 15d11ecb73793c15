package domain

// Action classifies what an approved draft asks the dispatcher to do.
// The value comes from the draft's front-matter `action` key and defaults
// to ActionSendEmail when absent.
type Action string

// Action constants define the supported outbound actions.
const (
	// ActionSendEmail sends the draft body as an email.
	ActionSendEmail Action = "send_email"

	// ActionSendWhatsApp sends the draft body as a WhatsApp message.
	ActionSendWhatsApp Action = "send_whatsapp"

	// ActionPostLinkedIn publishes the draft body to LinkedIn.
	ActionPostLinkedIn Action = "post_linkedin"

	// ActionPostTwitter publishes the draft body to Twitter.
	ActionPostTwitter Action = "post_twitter"

	// ActionPostFacebook publishes the draft body to Facebook.
	ActionPostFacebook Action = "post_facebook"

	// ActionPostSocial publishes to the single platform named by the
	// draft's `platform` key (LinkedIn when unspecified).
	ActionPostSocial Action = "post_social"

	// ActionPostSocialMedia fans one draft out to every platform that has
	// a "## <Platform> Post" section in the body.
	ActionPostSocialMedia Action = "post_social_media"
)

// String returns the string representation of the Action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is a recognized type.
func (a Action) IsValid() bool {
	switch a {
	case ActionSendEmail, ActionSendWhatsApp, ActionPostLinkedIn,
		ActionPostTwitter, ActionPostFacebook, ActionPostSocial,
		ActionPostSocialMedia:
		return true
	}
	return false
}

// IsSocial reports whether the action publishes to a social platform and
// therefore needs only a body, no recipient or subject.
func (a Action) IsSocial() bool {
	switch a {
	case ActionPostLinkedIn, ActionPostTwitter, ActionPostFacebook,
		ActionPostSocial, ActionPostSocialMedia:
		return true
	}
	return false
}

// Channel identifies a concrete delivery surface a Sender implements.
type Channel string

// Channel constants define the delivery surfaces.
const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelLinkedIn Channel = "linkedin"
	ChannelTwitter  Channel = "twitter"
	ChannelFacebook Channel = "facebook"
)

// String returns the string representation of the Channel.
func (c Channel) String() string {
	return string(c)
}

// IsValid checks if the channel is a recognized type.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp, ChannelLinkedIn, ChannelTwitter, ChannelFacebook:
		return true
	}
	return false
}

// Attachment is one binary payload carried by a draft, stored base64 in
// front-matter so the draft file stays a plain text document.
type Attachment struct {
	// Filename is the name presented to the recipient.
	Filename string `json:"filename" yaml:"filename"`

	// ContentBase64 is the standard-base64 encoded payload.
	ContentBase64 string `json:"content_base64" yaml:"content_base64"`

	// MIMEType is the payload's content type, e.g. application/pdf.
	MIMEType string `json:"mime_type" yaml:"mime_type"`
}

// Draft describes one proposed outbound action staged for human approval.
// Drafts are written by the reasoning worker into PendingApproval and read
// back by the dispatcher from Approved.
type Draft struct {
	// TaskID back-references the originating task so the dispatcher can
	// close it after a successful send.
	TaskID string `json:"task_id"`

	// Action classifies the outbound operation.
	Action Action `json:"action"`

	// To is the recipient address or number. Required for email and
	// WhatsApp, ignored for social posts.
	To string `json:"to,omitempty"`

	// Subject is the email subject. Required for email only.
	Subject string `json:"subject,omitempty"`

	// Body is the outbound text after normalization.
	Body string `json:"body"`

	// ThreadID threads an email reply into an existing conversation.
	ThreadID string `json:"thread_id,omitempty"`

	// InReplyTo is the message id an email reply references.
	InReplyTo string `json:"in_reply_to,omitempty"`

	// Platform routes ActionPostSocial to a specific network.
	Platform Channel `json:"platform,omitempty"`

	// InvoiceID references an ERP document to fetch and attach. Zero
	// means no reference.
	InvoiceID int `json:"invoice_id,omitempty"`

	// Attachments are binary payloads to deliver with the message.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Outbound is the channel-facing view of a draft: everything a Sender
// needs to transmit one message, nothing about vault lifecycle.
type Outbound struct {
	// To is the recipient, empty for social posts.
	To string `json:"to,omitempty"`

	// Subject is set for email only.
	Subject string `json:"subject,omitempty"`

	// Body is the normalized outbound text.
	Body string `json:"body"`

	// ThreadID and InReplyTo thread email replies.
	ThreadID  string `json:"thread_id,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`

	// Attachments are delivered alongside the body where the channel
	// supports them.
	Attachments []Attachment `json:"attachments,omitempty"`
}
