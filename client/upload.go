package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// FileUpload is one pending attachment upload: the owning entity's
// xid and group type, plus a content producer invoked with the xid.
type FileUpload struct {
	Xid      string
	Type     string // Document or Report
	FileName string
	Content  func(xid string) []byte
}

// UploadResult records the outcome of a single file upload.
type UploadResult struct {
	Xid      string
	Uploaded bool
}

// UploadFiles streams attachment content to the per-entity upload
// endpoints after the primary entity batch was accepted. A single
// file's nil content or failed upload is recorded per-xid and does not
// stop the remaining uploads; failures are fatal only when
// haltOnFileError is set.
func (c *Client) UploadFiles(ctx context.Context, uploads []FileUpload, haltOnFileError bool) ([]UploadResult, error) {
	results := make([]UploadResult, 0, len(uploads))
	for _, upload := range uploads {
		uploaded, err := c.uploadFile(ctx, upload)
		results = append(results, UploadResult{Xid: upload.Xid, Uploaded: uploaded})
		if err != nil {
			if haltOnFileError {
				return results, err
			}
			c.logger.Warn("file upload failed",
				"xid", upload.Xid, "fileName", upload.FileName, "err", err)
		}
	}
	return results, nil
}

func (c *Client) uploadFile(ctx context.Context, upload FileUpload) (bool, error) {
	var content []byte
	if upload.Content != nil {
		content = upload.Content(upload.Xid)
	}
	if content == nil {
		return false, &RequestError{
			Code:    CodeFileUploadFailed,
			Message: fmt.Sprintf("no file content for xid %s", upload.Xid),
		}
	}

	endpoint := "documents"
	if upload.Type == "Report" {
		endpoint = "reports"
	}
	path := fmt.Sprintf("/%s/%s/upload?owner=%s&updateIfExists=true",
		endpoint, url.PathEscape(upload.Xid), url.QueryEscape(c.owner))

	resp, err := c.send(ctx, http.MethodPost, path, "application/octet-stream", bytes.NewReader(content))
	if err != nil {
		return false, &RequestError{Code: CodeFileUploadFailed, Message: "file upload failed", Err: err}
	}
	// 401 means the file already exists in this protocol; retry once
	// with PUT to update it.
	if resp.Code == http.StatusUnauthorized {
		resp, err = c.send(ctx, http.MethodPut, path, "application/octet-stream", bytes.NewReader(content))
		if err != nil {
			return false, &RequestError{Code: CodeFileUploadFailed, Message: "file upload retry failed", Err: err}
		}
	}
	if resp.Code < 200 || resp.Code >= 300 {
		return false, &RequestError{
			Code:    CodeFileUploadFailed,
			Status:  resp.Code,
			Message: fmt.Sprintf("file upload rejected for xid %s", upload.Xid),
			Body:    string(resp.Body),
		}
	}
	return true, nil
}
