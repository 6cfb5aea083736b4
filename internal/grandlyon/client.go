package grandlyon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTransport marks network failures, timeouts and 5xx responses
var ErrTransport = errors.New("grandlyon: transport failure")

// ErrClientStatus marks 4xx responses; see StatusError
var ErrClientStatus = errors.New("grandlyon: client error status")

// StatusError is returned for 4xx responses. It is never retried.
type StatusError struct {
	Feed       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("grandlyon: %s returned status %d", e.Feed, e.StatusCode)
}

// Is reports whether target is ErrClientStatus
func (e *StatusError) Is(target error) bool {
	return target == ErrClientStatus
}

// Category selects one of the four line layers
type Category string

const (
	CategoryBus         Category = "bus"
	CategoryMetro       Category = "metro"
	CategoryTram        Category = "tram"
	CategoryRhonexpress Category = "rhonexpress"
)

// Categories lists every line category in ingestion order
var Categories = []Category{CategoryBus, CategoryMetro, CategoryTram, CategoryRhonexpress}

var lineTypeNames = map[Category]string{
	CategoryBus:         "sytral:tcl_sytral.tcllignebus_2_0_0",
	CategoryMetro:       "sytral:tcl_sytral.tcllignemf_2_0_0",
	CategoryTram:        "sytral:tcl_sytral.tcllignetram_2_0_0",
	CategoryRhonexpress: "sytral:rx_rhonexpress.rxligne_2_0_0",
}

// TypeName returns the WFS typename of the category's layer
func (c Category) TypeName() (string, error) {
	name, ok := lineTypeNames[c]
	if !ok {
		return "", fmt.Errorf("unknown line category %q", string(c))
	}
	return name, nil
}

const (
	typeNameStations = "sytral:tcl_sytral.tclstation"
	typeNameStops    = "sytral:tcl_sytral.tclarret"
)

// Options configures a Client
type Options struct {
	Token                  string
	Timeout                time.Duration
	MaxRetries             int
	RetryInterval          time.Duration // first backoff interval
	VehicleMonitoringURL   string
	EstimatedTimetablesURL string
	AlertsURL              string
	WFSURL                 string
	HTTPClient             *http.Client
	Logger                 *slog.Logger
}

// Client fetches the GrandLyon open-data feeds
type Client struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a feed client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{opts: opts, client: httpClient, logger: logger}
}

// VehicleMonitoring returns the current fleet snapshot
func (c *Client) VehicleMonitoring(ctx context.Context) ([]VehicleActivity, error) {
	var envelope struct {
		Siri *struct {
			ServiceDelivery *struct {
				VehicleMonitoringDelivery []struct {
					VehicleActivity []VehicleActivity `json:"VehicleActivity"`
				} `json:"VehicleMonitoringDelivery"`
			} `json:"ServiceDelivery"`
		} `json:"Siri"`
	}
	if err := c.getJSON(ctx, "vehicle-monitoring", c.opts.VehicleMonitoringURL, &envelope); err != nil {
		return nil, err
	}

	if envelope.Siri == nil || envelope.Siri.ServiceDelivery == nil ||
		len(envelope.Siri.ServiceDelivery.VehicleMonitoringDelivery) == 0 {
		return []VehicleActivity{}, nil
	}
	activities := envelope.Siri.ServiceDelivery.VehicleMonitoringDelivery[0].VehicleActivity
	if activities == nil {
		return []VehicleActivity{}, nil
	}
	return activities, nil
}

// EstimatedTimetables returns the estimated journeys of the first frame
func (c *Client) EstimatedTimetables(ctx context.Context) ([]EstimatedVehicleJourney, error) {
	var envelope struct {
		Siri *struct {
			ServiceDelivery *struct {
				EstimatedTimetableDelivery []struct {
					EstimatedJourneyVersionFrame []struct {
						EstimatedVehicleJourney []EstimatedVehicleJourney `json:"EstimatedVehicleJourney"`
					} `json:"EstimatedJourneyVersionFrame"`
				} `json:"EstimatedTimetableDelivery"`
			} `json:"ServiceDelivery"`
		} `json:"Siri"`
	}
	if err := c.getJSON(ctx, "estimated-timetables", c.opts.EstimatedTimetablesURL, &envelope); err != nil {
		return nil, err
	}

	if envelope.Siri == nil || envelope.Siri.ServiceDelivery == nil ||
		len(envelope.Siri.ServiceDelivery.EstimatedTimetableDelivery) == 0 {
		return []EstimatedVehicleJourney{}, nil
	}
	frames := envelope.Siri.ServiceDelivery.EstimatedTimetableDelivery[0].EstimatedJourneyVersionFrame
	if len(frames) == 0 || frames[0].EstimatedVehicleJourney == nil {
		return []EstimatedVehicleJourney{}, nil
	}
	return frames[0].EstimatedVehicleJourney, nil
}

// Alerts returns the traffic alert records
func (c *Client) Alerts(ctx context.Context) ([]AlertRecord, error) {
	var envelope struct {
		Values []AlertRecord `json:"values"`
	}
	if err := c.getJSON(ctx, "alerts", c.opts.AlertsURL, &envelope); err != nil {
		return nil, err
	}
	if envelope.Values == nil {
		return []AlertRecord{}, nil
	}
	return envelope.Values, nil
}

// Stations returns the station features
func (c *Client) Stations(ctx context.Context) ([]Feature, error) {
	return c.features(ctx, "stations", typeNameStations)
}

// Stops returns the stop features
func (c *Client) Stops(ctx context.Context) ([]Feature, error) {
	return c.features(ctx, "stops", typeNameStops)
}

// Lines returns the line features of one category
func (c *Client) Lines(ctx context.Context, category Category) ([]Feature, error) {
	typeName, err := category.TypeName()
	if err != nil {
		return nil, err
	}
	return c.features(ctx, "lines-"+string(category), typeName)
}

func (c *Client) features(ctx context.Context, feed, typeName string) ([]Feature, error) {
	u, err := url.Parse(c.opts.WFSURL)
	if err != nil {
		return nil, fmt.Errorf("invalid WFS url: %w", err)
	}
	q := u.Query()
	q.Set("SERVICE", "WFS")
	q.Set("VERSION", "2.0.0")
	q.Set("request", "GetFeature")
	q.Set("typename", typeName)
	q.Set("outputFormat", "application/json")
	q.Set("SRSNAME", "EPSG:4171")
	u.RawQuery = q.Encode()

	var collection struct {
		Features []Feature `json:"features"`
	}
	if err := c.getJSON(ctx, feed, u.String(), &collection); err != nil {
		return nil, err
	}
	if collection.Features == nil {
		return []Feature{}, nil
	}
	return collection.Features, nil
}

// getJSON issues an authenticated GET and decodes the body into out.
// Transport failures are retried with exponential backoff; 4xx and decode
// errors are returned immediately.
func (c *Client) getJSON(ctx context.Context, feed, rawURL string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInterval
	b.MaxInterval = 10 * c.opts.RetryInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		return c.fetchOnce(ctx, feed, rawURL, out)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("feed request failed, retrying",
			slog.String("feed", feed),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	return backoff.RetryNotify(operation, policy, notify)
}

func (c *Client) fetchOnce(ctx context.Context, feed, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Basic "+c.opts.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrTransport, feed, ctx.Err()))
		}
		return fmt.Errorf("%w: %s: %v", ErrTransport, feed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned status %d", ErrTransport, feed, resp.StatusCode)
	case resp.StatusCode >= 400:
		_, _ = io.Copy(io.Discard, resp.Body)
		return backoff.Permanent(&StatusError{Feed: feed, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", ErrTransport, feed, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode %s response: %w", feed, err))
	}
	return nil
}
