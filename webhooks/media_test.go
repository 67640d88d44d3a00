package webhooks

import "testing"

func TestMessageBody(t *testing.T) {
	cases := []struct {
		name     string
		content  gatewayMessageContent
		wantBody string
		wantKind string
	}{
		{
			name:     "plain text",
			content:  gatewayMessageContent{Conversation: "hello"},
			wantBody: "hello",
			wantKind: "text",
		},
		{
			name: "extended text",
			content: gatewayMessageContent{ExtendedTextMessage: &struct {
				Text string `json:"text"`
			}{Text: "quoted reply"}},
			wantBody: "quoted reply",
			wantKind: "text",
		},
		{
			name: "image with caption",
			content: gatewayMessageContent{ImageMessage: &struct {
				Caption string `json:"caption"`
			}{Caption: "the receipt"}},
			wantBody: "[image] the receipt",
			wantKind: "image",
		},
		{
			name: "image without caption",
			content: gatewayMessageContent{ImageMessage: &struct {
				Caption string `json:"caption"`
			}{}},
			wantBody: "[image]",
			wantKind: "image",
		},
		{
			name: "audio",
			content: gatewayMessageContent{AudioMessage: &struct {
				Seconds int `json:"seconds"`
			}{Seconds: 12}},
			wantBody: "[audio]",
			wantKind: "audio",
		},
		{
			name: "document with file name",
			content: gatewayMessageContent{DocumentMessage: &struct {
				FileName string `json:"fileName"`
			}{FileName: "invoice.pdf"}},
			wantBody: "[document] invoice.pdf",
			wantKind: "document",
		},
		{
			name:     "sticker",
			content:  gatewayMessageContent{StickerMessage: &struct{}{}},
			wantBody: "[sticker]",
			wantKind: "sticker",
		},
		{
			name:     "empty payload",
			content:  gatewayMessageContent{},
			wantBody: "",
			wantKind: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, kind := messageBody(tc.content)
			if body != tc.wantBody {
				t.Fatalf("body = %q, want %q", body, tc.wantBody)
			}
			if kind != tc.wantKind {
				t.Fatalf("kind = %q, want %q", kind, tc.wantKind)
			}
		})
	}
}
