package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/screen"
)

const (
	// DefaultTimeout bounds one detector or OCR request.
	DefaultTimeout = 60 * time.Second

	imageField         = "image_array"
	maxErrorBodySize   = 4096
	defaultWidgetClass = "widget"
)

// ClassNames maps detector class ids to widget types.
var ClassNames = []string{"button", "checkbox", "edittext", "image", "imagebutton", "radiobutton", "switch", "textview"}

// serviceClient posts base64 images as form data.
type serviceClient struct {
	url        string
	httpClient *http.Client
}

func newServiceClient(serviceURL string, timeout time.Duration) serviceClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return serviceClient{url: serviceURL, httpClient: &http.Client{Timeout: timeout}}
}

func (c serviceClient) post(ctx context.Context, image []byte, out any) error {
	form := url.Values{}
	form.Set(imageField, base64.StdEncoding.EncodeToString(image))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Detector is an HTTP widget detection client.
type Detector struct {
	client serviceClient
}

// NewDetector returns a client for the detector service at serviceURL.
func NewDetector(serviceURL string, timeout time.Duration) *Detector {
	return &Detector{client: newServiceClient(serviceURL, timeout)}
}

type detectorResponse struct {
	Box   []screen.Bounds   `json:"box"`
	Class []json.RawMessage `json:"class"`
}

// Detect implements ports.Detector. Widgets are ordered top to bottom, then
// left to right. A response without classes leaves every widget generic;
// otherwise there must be one class per box.
func (d *Detector) Detect(ctx context.Context, image []byte) ([]screen.Widget, error) {
	var resp detectorResponse
	if err := d.client.post(ctx, image, &resp); err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	if len(resp.Class) > 0 && len(resp.Class) != len(resp.Box) {
		return nil, fmt.Errorf("detector: %d classes for %d boxes", len(resp.Class), len(resp.Box))
	}

	widgets := make([]screen.Widget, 0, len(resp.Box))
	for i, box := range resp.Box {
		class := defaultWidgetClass
		if len(resp.Class) > 0 {
			class = className(resp.Class[i])
		}
		widgets = append(widgets, screen.Widget{Bounds: box, Type: class})
	}
	sort.SliceStable(widgets, func(a, b int) bool {
		wa, wb := widgets[a].Bounds, widgets[b].Bounds
		if wa.YMin != wb.YMin {
			return wa.YMin < wb.YMin
		}
		return wa.XMin < wb.XMin
	})
	return widgets, nil
}

// className resolves a class given either by name or by numeric id.
func className(raw json.RawMessage) string {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil && name != "" {
		return name
	}
	var id float64
	if err := json.Unmarshal(raw, &id); err == nil {
		if n := int(id); n >= 0 && n < len(ClassNames) {
			return ClassNames[n]
		}
		return strconv.Itoa(int(id))
	}
	return defaultWidgetClass
}

// OCR is an HTTP text recognition client.
type OCR struct {
	client serviceClient
}

// NewOCR returns a client for the OCR service at serviceURL.
func NewOCR(serviceURL string, timeout time.Duration) *OCR {
	return &OCR{client: newServiceClient(serviceURL, timeout)}
}

type ocrResponse struct {
	Text []string        `json:"text"`
	Box  []screen.Bounds `json:"box"`
}

// Recognize implements ports.OCR.
func (o *OCR) Recognize(ctx context.Context, image []byte) ([]screen.TextBox, error) {
	var resp ocrResponse
	if err := o.client.post(ctx, image, &resp); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	if len(resp.Text) != len(resp.Box) {
		return nil, fmt.Errorf("ocr: %d texts for %d boxes", len(resp.Text), len(resp.Box))
	}

	boxes := make([]screen.TextBox, 0, len(resp.Text))
	for i, text := range resp.Text {
		boxes = append(boxes, screen.TextBox{Bounds: resp.Box[i], Text: text})
	}
	return boxes, nil
}
