package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// Archiver copies original uploads to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, localPath, contentType string) (string, error)
}

type azureArchiver struct {
	client    *azblob.Client
	container string
}

// NewAzureArchiver uploads originals into container using a shared key credential.
func NewAzureArchiver(accountName, accountKey, container string) (Archiver, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureArchiver{client: client, container: container}, nil
}

// Archive uploads the file under its base name and returns the blob URL.
func (a *azureArchiver) Archive(ctx context.Context, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	blobName := filepath.Base(localPath)
	_, err = a.client.UploadFile(ctx, a.container, blobName, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", blobName, err)
	}

	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(a.client.URL(), "/"), a.container, blobName), nil
}
