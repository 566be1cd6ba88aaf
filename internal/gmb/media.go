package gmb

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"gmb-connector/internal/common/errors"
)

// StartUpload requests an upload handle for a new media item of the location.
func (c *Client) StartUpload(ctx context.Context, locationID string) (*MediaDataRef, error) {
	ref := &MediaDataRef{}
	if err := c.call(ctx, request{
		op:     OpStartUpload,
		method: http.MethodPost,
		base:   c.endpoints.V4,
		path:   locationID + "/media:startUpload",
	}, ref); err != nil {
		return nil, err
	}
	if ref.ResourceName == "" {
		return nil, c.classify(ctx, OpStartUpload, errors.InternalError("upload handle has no resource name", nil))
	}
	return ref, nil
}

// UploadBytes streams r to the upload URI of ref.
func (c *Client) UploadBytes(ctx context.Context, ref *MediaDataRef, r io.Reader) error {
	if ref == nil || ref.ResourceName == "" {
		return c.classify(ctx, OpUploadBytes, errors.ValidationError("upload handle is required"))
	}
	if r == nil {
		return c.classify(ctx, OpUploadBytes, errors.ValidationError("media content is required"))
	}
	if err := c.call(ctx, request{
		op:     OpUploadBytes,
		method: http.MethodPost,
		base:   c.endpoints.Upload,
		path:   ref.ResourceName,
		query:  url.Values{"upload_type": {"media"}},
		raw:    r,
	}, nil); err != nil {
		return err
	}
	return nil
}

// UploadMedia runs both upload steps and returns the handle to pass to
// CreateMedia or to attach to a post.
func (c *Client) UploadMedia(ctx context.Context, locationID string, r io.Reader) (*MediaDataRef, error) {
	ref, err := c.StartUpload(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if err := c.UploadBytes(ctx, ref, r); err != nil {
		return nil, err
	}
	return ref, nil
}

// CreateMedia adds an uploaded item to the location's media collection.
// An empty category means DefaultMediaCategory.
func (c *Client) CreateMedia(ctx context.Context, locationID, resourceName string, format MediaFormat, category string) (*MediaItem, error) {
	if format != MediaPhoto && format != MediaVideo {
		return nil, c.classify(ctx, OpCreateMedia, errors.ValidationError("media format must be PHOTO or VIDEO"))
	}
	if category == "" {
		category = DefaultMediaCategory
	}
	item := &MediaItem{
		MediaFormat:         format,
		DataRef:             &MediaDataRef{ResourceName: resourceName},
		LocationAssociation: &LocationAssociation{Category: category},
	}

	created := &MediaItem{}
	if err := c.call(ctx, request{
		op:     OpCreateMedia,
		method: http.MethodPost,
		base:   c.endpoints.V4,
		path:   locationID + "/media",
		body:   item,
	}, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) RemoveMedia(ctx context.Context, mediaName string) error {
	if err := c.call(ctx, request{
		op:     OpRemoveMedia,
		method: http.MethodDelete,
		base:   c.endpoints.V4,
		path:   mediaName,
	}, nil); err != nil {
		return err
	}
	return nil
}
