package webhooks

import "strings"

type gatewayMessageContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage *struct {
		Caption string `json:"caption"`
	} `json:"imageMessage"`
	AudioMessage *struct {
		Seconds int `json:"seconds"`
	} `json:"audioMessage"`
	VideoMessage *struct {
		Caption string `json:"caption"`
	} `json:"videoMessage"`
	DocumentMessage *struct {
		FileName string `json:"fileName"`
	} `json:"documentMessage"`
	StickerMessage *struct{} `json:"stickerMessage"`
}

// messageBody maps a gateway message payload to relay text. Text passes
// through; media collapses to a placeholder token, with captions and file
// names appended when present.
func messageBody(content gatewayMessageContent) (string, string) {
	if text := strings.TrimSpace(content.Conversation); text != "" {
		return text, "text"
	}
	if content.ExtendedTextMessage != nil {
		if text := strings.TrimSpace(content.ExtendedTextMessage.Text); text != "" {
			return text, "text"
		}
	}
	if content.ImageMessage != nil {
		if caption := strings.TrimSpace(content.ImageMessage.Caption); caption != "" {
			return "[image] " + caption, "image"
		}
		return "[image]", "image"
	}
	if content.AudioMessage != nil {
		return "[audio]", "audio"
	}
	if content.VideoMessage != nil {
		if caption := strings.TrimSpace(content.VideoMessage.Caption); caption != "" {
			return "[video] " + caption, "video"
		}
		return "[video]", "video"
	}
	if content.DocumentMessage != nil {
		if name := strings.TrimSpace(content.DocumentMessage.FileName); name != "" {
			return "[document] " + name, "document"
		}
		return "[document]", "document"
	}
	if content.StickerMessage != nil {
		return "[sticker]", "sticker"
	}
	return "", ""
}
