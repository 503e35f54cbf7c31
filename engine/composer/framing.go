package composer

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Framing is one provider's fixed context wrapper.
type Framing struct {
	Header string
	Bullet string
	Prefix string
	Suffix string
}

// providerFramings is the closed provider dispatch table.
var providerFramings = map[string]Framing{
	"generic":   {Header: "Current context for this user:", Bullet: "- "},
	"openai":    {Header: "Current context for this user:", Bullet: "- "},
	"anthropic": {Prefix: "<context>", Suffix: "</context>"},
	"google":    {Prefix: "[User Context]", Suffix: "[End Context]"},
	"mistral":   {Header: "Current context for this user:", Bullet: "- "},
	"cohere":    {Prefix: "## User Context", Suffix: "## End Context"},
}

// frameForProvider wraps the context lines in the provider's template.
// Unknown providers get the generic framing.
func frameForProvider(lines []string, provider string) string {
	if len(lines) == 0 {
		return ""
	}

	framing, ok := providerFramings[strings.ToLower(provider)]
	if !ok {
		framing = providerFramings["generic"]
	}

	body := lines
	if framing.Bullet != "" {
		body = make([]string, 0, len(lines))
		for _, line := range lines {
			body = append(body, framing.Bullet+line)
		}
	}

	out := []string{}
	if framing.Prefix != "" {
		out = append(out, framing.Prefix)
	}
	if framing.Header != "" {
		out = append(out, framing.Header)
	}
	out = append(out, body...)
	if framing.Suffix != "" {
		out = append(out, framing.Suffix)
	}
	return strings.Join(out, "\n")
}

// InjectionStyle places the composed context relative to the user
// message.
type InjectionStyle string

const (
	InjectSystem InjectionStyle = "system"
	InjectPrefix InjectionStyle = "prefix"
	InjectSuffix InjectionStyle = "suffix"
)

// ToChatMessages frames the composition as provider chat messages at
// the SDK boundary. This is the only place provider message shapes
// appear.
func ToChatMessages(composed *ComposedPrompt, style InjectionStyle) []openai.ChatCompletionMessage {
	switch style {
	case InjectPrefix:
		content := composed.UserMessage
		if composed.SystemContext != "" {
			content = composed.SystemContext + "\n\n" + composed.UserMessage
		}
		return []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: content},
		}
	case InjectSuffix:
		content := composed.UserMessage
		if composed.SystemContext != "" {
			content = composed.UserMessage + "\n\n" + composed.SystemContext
		}
		return []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: content},
		}
	default:
		messages := []openai.ChatCompletionMessage{}
		if composed.SystemContext != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: composed.SystemContext,
			})
		}
		return append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: composed.UserMessage,
		})
	}
}
