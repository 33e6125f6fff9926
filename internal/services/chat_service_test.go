package services

import (
	"strings"
	"testing"

	"locshare-backend/internal/models"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		msgType     string
		wantContent string
		wantType    string
		wantErr     error
	}{
		{name: "plain text", content: "hello", msgType: "text", wantContent: "hello", wantType: "text"},
		{name: "default type", content: "hello", msgType: "", wantContent: "hello", wantType: "text"},
		{name: "trims whitespace", content: "  hi  ", msgType: "text", wantContent: "hi", wantType: "text"},
		{name: "empty", content: "", msgType: "text", wantErr: ErrEmptyContent},
		{name: "whitespace only", content: "   \n\t ", msgType: "text", wantErr: ErrEmptyContent},
		{name: "at the limit", content: strings.Repeat("a", 1000), msgType: "text", wantContent: strings.Repeat("a", 1000), wantType: "text"},
		{name: "over the limit", content: strings.Repeat("a", 1001), msgType: "text", wantErr: ErrContentTooLong},
		// The limit counts characters, not bytes.
		{name: "multibyte at the limit", content: strings.Repeat("é", 1000), msgType: "text", wantContent: strings.Repeat("é", 1000), wantType: "text"},
		{name: "multibyte over the limit", content: strings.Repeat("é", 1001), msgType: "text", wantErr: ErrContentTooLong},
		{name: "image type", content: "cdn://abc", msgType: "image", wantContent: "cdn://abc", wantType: "image"},
		{name: "location type", content: "10,20", msgType: "location", wantContent: "10,20", wantType: "location"},
		{name: "system type", content: "joined", msgType: "system", wantContent: "joined", wantType: "system"},
		{name: "unknown type", content: "hello", msgType: "video", wantErr: ErrInvalidMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, msgType, err := validateMessage(tt.content, tt.msgType)
			if err != tt.wantErr {
				t.Fatalf("validateMessage() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if content != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
			if msgType != tt.wantType {
				t.Errorf("type = %q, want %q", msgType, tt.wantType)
			}
		})
	}
}

func TestPairKeySymmetry(t *testing.T) {
	if pairKey(1, 2) != pairKey(2, 1) {
		t.Fatalf("pairKey is order dependent: %q vs %q", pairKey(1, 2), pairKey(2, 1))
	}
	if pairKey(1, 2) == pairKey(1, 3) {
		t.Fatal("distinct pairs share a key")
	}
	if pairKey(7, 7) != "7:7" {
		t.Fatalf("pairKey(7, 7) = %q", pairKey(7, 7))
	}
}

func TestTombstoneText(t *testing.T) {
	// Client display logic depends on this exact string.
	if models.DeletedMessageText != "This message was deleted" {
		t.Fatalf("tombstone text changed: %q", models.DeletedMessageText)
	}
}
