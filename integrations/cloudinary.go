// Package integrations wraps the third party services the API talks to: the image
// host and the transactional mail provider.
package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

// Image host folders
const (
	FolderCases   = "missing-alert/cases"
	FolderAvatars = "missing-alert/avatars"
)

const (
	caseTransformation   = "q_auto:good,f_auto"
	avatarTransformation = "c_fill,g_face,w_300,h_300,q_auto:good,f_auto"
)

// ErrImageNotFound is returned by Delete when the host has no such image
var ErrImageNotFound = errors.New("image not found")

// ErrImageHostDisabled is returned when no image host credentials are configured
var ErrImageHostDisabled = errors.New("image host is not configured")

// HostedImage describes an uploaded image
type HostedImage struct {
	URL      string
	PublicID string
	Format   string
	Width    int
	Height   int
	Bytes    int
}

// ImageHost stores images
type ImageHost interface {
	Upload(ctx context.Context, r io.Reader, folder, publicID string) (*HostedImage, error)
	Delete(ctx context.Context, publicID string) error
	Usage(ctx context.Context) (json.RawMessage, error)
}

// Cloudinary is the ImageHost backed by cloudinary
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary connects to the cloudinary account identified by the credentials
func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// Upload stores the image read from r under folder/publicID
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, folder, publicID string) (*HostedImage, error) {
	transformation := caseTransformation
	if folder == FolderAvatars {
		transformation = avatarTransformation
	}
	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:         folder,
		PublicID:       publicID,
		Transformation: transformation,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	zap.S().Infow("image uploaded", "publicId", res.PublicID, "bytes", res.Bytes)
	return &HostedImage{
		URL:      res.SecureURL,
		PublicID: res.PublicID,
		Format:   res.Format,
		Width:    res.Width,
		Height:   res.Height,
		Bytes:    res.Bytes,
	}, nil
}

// Delete removes the image with the given public id
func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	switch res.Result {
	case "ok":
		return nil
	case "not found":
		return ErrImageNotFound
	default:
		return fmt.Errorf("cloudinary destroy: result %q %s", res.Result, res.Error.Message)
	}
}

// Usage returns the account usage report as reported by cloudinary
func (c *Cloudinary) Usage(ctx context.Context) (json.RawMessage, error) {
	res, err := c.cld.Admin.Usage(ctx, admin.UsageParams{})
	if err != nil {
		return nil, fmt.Errorf("cloudinary usage: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary usage: %s", res.Error.Message)
	}
	return json.Marshal(res)
}

// DisabledImageHost refuses every operation. It stands in when cloudinary is not
// configured so the rest of the API still starts.
type DisabledImageHost struct{}

// Upload implements ImageHost
func (DisabledImageHost) Upload(context.Context, io.Reader, string, string) (*HostedImage, error) {
	return nil, ErrImageHostDisabled
}

// Delete implements ImageHost
func (DisabledImageHost) Delete(context.Context, string) error {
	return ErrImageHostDisabled
}

// Usage implements ImageHost
func (DisabledImageHost) Usage(context.Context) (json.RawMessage, error) {
	return nil, ErrImageHostDisabled
}
