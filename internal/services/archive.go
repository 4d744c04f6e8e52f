package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"trdelnik-backend/internal/config"
	"trdelnik-backend/internal/models"
)

// ArchiveService stores finished-game summaries in the Akave bucket through
// its S3-compatible API, keyed game-{sessionId}.json.
type ArchiveService struct {
	client *s3.Client
	bucket string
}

func NewArchiveService(ctx context.Context, cfg *config.Config) (*ArchiveService, error) {
	if cfg.AkaveEndpoint == "" || cfg.AkaveBucket == "" {
		return nil, fmt.Errorf("akave archive is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"), // required but unused by Akave
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AkaveAccessKey, cfg.AkaveSecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.AkaveEndpoint)
		o.UsePathStyle = true // required for Akave
	})

	return &ArchiveService{
		client: client,
		bucket: cfg.AkaveBucket,
	}, nil
}

func archiveKey(sessionID uint64) string {
	return fmt.Sprintf("game-%d.json", sessionID)
}

func (a *ArchiveService) SaveGame(ctx context.Context, game *models.ArchivedGame) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game %d: %v", game.SessionID, err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(archiveKey(game.SessionID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive game %d: %w", game.SessionID, err)
	}

	return nil
}

// GetGame returns the archived summary, or nil when none exists.
func (a *ArchiveService) GetGame(ctx context.Context, sessionID uint64) (*models.ArchivedGame, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(archiveKey(sessionID)),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch archived game %d: %w", sessionID, err)
	}
	defer out.Body.Close()

	var game models.ArchivedGame
	if err := json.NewDecoder(out.Body).Decode(&game); err != nil {
		return nil, fmt.Errorf("failed to decode archived game %d: %v", sessionID, err)
	}

	return &game, nil
}

func (a *ArchiveService) DeleteGame(ctx context.Context, sessionID uint64) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(archiveKey(sessionID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete archived game %d: %w", sessionID, err)
	}

	return nil
}
