package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"Myagara/pkg/nn"
	"Myagara/pkg/vision"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/context"
)

const defaultRemoteTimeout = 30 * time.Second

type remoteResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type remoteModel struct {
	ModelVersion string    `json:"model_version"`
	Classes      []string  `json:"classes"`
	ImageSize    int       `json:"image_size"`
	InputShape   []int64   `json:"input_shape"`
	CreatedAt    time.Time `json:"created_at"`
}

type remoteError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Remote forwards each image to another classification server that speaks
// the same POST /classify contract.
type Remote struct {
	client *resty.Client
	url    string
	meta   nn.Metadata
}

// NewRemote targets the full classify URL, e.g.
// http://localhost:5000/classify. Requests are not retried.
//
// The class list is read once from the upstream GET /api/v1/model. When that
// fails the classifier still works, but Metadata has no classes and every
// Prediction.Index is -1.
func NewRemote(url string, timeout time.Duration) (*Remote, error) {
	if url == "" {
		return nil, errors.New("remote classifier url is required")
	}
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)

	r := &Remote{
		client: client,
		url:    url,
		meta: nn.Metadata{
			SchemaVersion: nn.MetadataSchemaVersion,
			ModelVersion:  "remote:" + url,
		},
	}

	upstream, err := r.fetchModel(context.Background())
	if err != nil {
		return r, nil
	}
	r.meta.ModelVersion = "remote:" + upstream.ModelVersion
	r.meta.Classes = upstream.Classes
	r.meta.ImageSize = upstream.ImageSize
	r.meta.InputShape = upstream.InputShape
	r.meta.CreatedAt = upstream.CreatedAt
	return r, nil
}

// modelURL maps .../classify or .../api/v1/classify to .../api/v1/model.
func modelURL(classifyURL string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(classifyURL, "/"), "/classify")
	base = strings.TrimSuffix(base, "/api/v1")
	return base + "/api/v1/model"
}

func (r *Remote) fetchModel(ctx context.Context) (*remoteModel, error) {
	var upstream remoteModel
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&upstream).
		Get(modelURL(r.url))
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%s answered %d", modelURL(r.url), resp.StatusCode())
	}
	if upstream.ModelVersion == "" || len(upstream.Classes) == 0 {
		return nil, errors.New("upstream model metadata has no version or classes")
	}
	return &upstream, nil
}

func (r *Remote) Classify(ctx context.Context, image []byte) (*Prediction, error) {
	var result remoteResult
	var failure remoteError

	resp, err := r.client.R().
		SetContext(ctx).
		SetFileReader("image", "upload", bytes.NewReader(image)).
		SetResult(&result).
		SetError(&failure).
		Post(r.url)
	if err != nil {
		return nil, inferenceError(fmt.Errorf("forward to %s: %w", r.url, err))
	}

	if resp.IsError() {
		if failure.Code == "invalid_input" {
			return nil, &vision.DecodeError{
				MIME: mimetype.Detect(image).String(),
				Err:  fmt.Errorf("rejected by %s: %s", r.url, failure.Error),
			}
		}
		return nil, inferenceError(fmt.Errorf("%s answered %d: %s", r.url, resp.StatusCode(), failure.Error))
	}
	if result.Label == "" {
		return nil, inferenceError(fmt.Errorf("%s answered without a label", r.url))
	}

	index := -1
	for i, c := range r.meta.Classes {
		if c == result.Label {
			index = i
			break
		}
	}
	return &Prediction{
		Label:      result.Label,
		Index:      index,
		Confidence: result.Confidence,
	}, nil
}

func (r *Remote) Metadata() nn.Metadata {
	return r.meta
}

func (r *Remote) Close() error {
	return nil
}
