package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/fundraise-dialer/internal/domain"
	"github.com/ignite/fundraise-dialer/internal/voice"
)

// TranscriptArchive writes full provider histories to S3, one object per
// conversation, overwritten as the conversation grows.
type TranscriptArchive struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

// NewTranscriptArchive creates an archive writing under prefix in bucket.
func NewTranscriptArchive(client S3API, bucket, prefix string) *TranscriptArchive {
	return &TranscriptArchive{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// archivedTranscript is the stored object body.
type archivedTranscript struct {
	ConversationID         string          `json:"conversation_id"`
	ExternalConversationID string          `json:"external_conversation_id,omitempty"`
	CampaignID             string          `json:"campaign_id"`
	LeadID                 string          `json:"lead_id"`
	ArchivedAt             time.Time       `json:"archived_at"`
	Messages               []voice.Message `json:"messages"`
}

// Key returns the object key for a conversation.
func (a *TranscriptArchive) Key(conv *domain.Conversation) string {
	return path.Join(a.prefix, conv.CampaignID, conv.ID+".json")
}

// ArchiveTranscript stores the history of conv.
func (a *TranscriptArchive) ArchiveTranscript(ctx context.Context, conv *domain.Conversation, h *voice.History) error {
	doc := archivedTranscript{
		ConversationID: conv.ID,
		CampaignID:     conv.CampaignID,
		LeadID:         conv.LeadID,
		ArchivedAt:     a.now().UTC(),
		Messages:       h.Messages,
	}
	if conv.ExternalConversationID != nil {
		doc.ExternalConversationID = *conv.ExternalConversationID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling transcript: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(conv)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading transcript to S3: %w", err)
	}
	return nil
}
