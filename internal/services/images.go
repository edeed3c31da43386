package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/types"
)

// ImageKit signatures may be valid for at most one hour
const imageKitAuthTTL = 30 * time.Minute

// ImageFile is the ImageKit description of a stored image
type ImageFile struct {
	FileID       string    `json:"fileId"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	FilePath     string    `json:"filePath,omitempty"`
	FileType     string    `json:"fileType,omitempty"`
	Mime         string    `json:"mime,omitempty"`
	Size         int64     `json:"size"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// ImageListOptions filters ImageKit listings
type ImageListOptions struct {
	Path   string
	Search string
	Skip   int
	Limit  int
}

// ImageUploadOptions are the optional upload parameters
type ImageUploadOptions struct {
	Folder string
	Tags   []string
}

// ImageAuthParams are handed to browsers for direct ImageKit uploads
type ImageAuthParams struct {
	Token       string `json:"token"`
	Expire      int64  `json:"expire"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	URLEndpoint string `json:"urlEndpoint,omitempty"`
}

// ImageKitClient talks to the ImageKit media API
type ImageKitClient struct {
	publicKey   string
	privateKey  string
	urlEndpoint string
	apiURL      string
	uploadURL   string
	maxFileSize int64
	allowed     []string
	upstream    *upstream
	now         func() time.Time
}

// NewImageKitClient creates a client from configuration. A nil client is
// accepted; the default has a 30s timeout.
func NewImageKitClient(cfg *config.Config, client *http.Client) *ImageKitClient {
	return &ImageKitClient{
		publicKey:   cfg.ImageKitPublicKey,
		privateKey:  cfg.ImageKitPrivateKey,
		urlEndpoint: cfg.ImageKitURLEndpoint,
		apiURL:      strings.TrimRight(cfg.ImageKitAPIURL, "/"),
		uploadURL:   cfg.ImageKitUploadURL,
		maxFileSize: cfg.MaxFileSize,
		allowed:     cfg.AllowedFileTypes,
		upstream:    newUpstream("imagekit", client),
		now:         time.Now,
	}
}

// Enabled reports whether credentials are configured
func (c *ImageKitClient) Enabled() bool {
	return c != nil && c.privateKey != "" && c.publicKey != ""
}

func (c *ImageKitClient) requireEnabled() error {
	if !c.Enabled() {
		return types.NewConfigError("IMAGEKIT_PRIVATE_KEY", "ImageKit is not configured")
	}
	return nil
}

// AuthParams signs a token for client-side uploads
func (c *ImageKitClient) AuthParams() (*ImageAuthParams, error) {
	if err := c.requireEnabled(); err != nil {
		return nil, err
	}
	token := uuid.NewString()
	expire := c.now().Add(imageKitAuthTTL).Unix()
	return &ImageAuthParams{
		Token:       token,
		Expire:      expire,
		Signature:   signImageKit(c.privateKey, token, expire),
		PublicKey:   c.publicKey,
		URLEndpoint: c.urlEndpoint,
	}, nil
}

func signImageKit(privateKey, token string, expire int64) string {
	mac := hmac.New(sha1.New, []byte(privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Upload sends a file to ImageKit
func (c *ImageKitClient) Upload(ctx context.Context, up FileUpload, opts ImageUploadOptions) (*ImageFile, error) {
	if err := c.requireEnabled(); err != nil {
		return nil, err
	}
	if err := ValidateUpload(up, c.maxFileSize, c.allowed); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", up.Name)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	fields := map[string]string{
		"fileName":          up.Name,
		"useUniqueFileName": "true",
	}
	if opts.Folder != "" {
		fields["folder"] = opts.Folder
	}
	if len(opts.Tags) > 0 {
		fields["tags"] = strings.Join(opts.Tags, ",")
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var file ImageFile
	if err := c.upstream.doJSON(req, &file); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("file", file.FileID).Str("name", file.Name).Msg("Image uploaded to ImageKit")
	return &file, nil
}

// List returns images, newest first
func (c *ImageKitClient) List(ctx context.Context, opts ImageListOptions) ([]ImageFile, error) {
	if err := c.requireEnabled(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("sort", "DESC_CREATED")
	if opts.Path != "" {
		q.Set("path", opts.Path)
	}
	if opts.Search != "" {
		q.Set("searchQuery", opts.Search)
	}
	if opts.Skip > 0 {
		q.Set("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/files?"+q.Encode())
	if err != nil {
		return nil, err
	}
	files := []ImageFile{}
	if err := c.upstream.doJSON(req, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// Get returns the details of one image
func (c *ImageKitClient) Get(ctx context.Context, fileID string) (*ImageFile, error) {
	if err := c.requireEnabled(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/details")
	if err != nil {
		return nil, err
	}
	var file ImageFile
	if err := c.upstream.doJSON(req, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// Delete removes an image
func (c *ImageKitClient) Delete(ctx context.Context, fileID string) error {
	if err := c.requireEnabled(); err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID))
	if err != nil {
		return err
	}
	if _, err := c.upstream.do(req); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("file", fileID).Msg("Image deleted from ImageKit")
	return nil
}

// Ping checks that the API answers with the configured credentials
func (c *ImageKitClient) Ping(ctx context.Context) error {
	_, err := c.List(ctx, ImageListOptions{Limit: 1})
	return err
}

func (c *ImageKitClient) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create imagekit request: %w", err)
	}
	c.authorize(req)
	return req, nil
}

// authorize uses the private key as basic auth user with an empty password
func (c *ImageKitClient) authorize(req *http.Request) {
	req.SetBasicAuth(c.privateKey, "")
	req.Header.Set("Accept", "application/json")
}
