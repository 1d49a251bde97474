// Package pyth reads price feeds from a Pyth Hermes endpoint.
package pyth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
)

const (
	defaultEndpoint = "https://hermes.pyth.network"
	latestPath      = "/v2/updates/price/latest"

	// MaximumAge is the staleness bound applied to every reading.
	MaximumAge = 30 * time.Second

	// Exponents beyond this magnitude cannot describe a price representable in 128 bits.
	maxExponent = 38
)

// Reader fetches the latest parsed price update for a feed id.
type Reader struct {
	*sources.BaseReader

	endpoint string
	maxAge   time.Duration
}

var _ sources.Reader = (*Reader)(nil)

// NewReader creates a Hermes reader. Config keys: endpoint, max_age plus the common
// reader keys.
func NewReader(config map[string]interface{}) (sources.Reader, error) {
	base, err := sources.NewBaseReader(sources.SourceTypePyth, config)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(sources.GetString(config, "endpoint", defaultEndpoint), "/")
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: endpoint: %v", sources.ErrInvalidConfig, err)
	}

	maxAge, err := sources.GetDuration(config, "max_age", MaximumAge)
	if err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("%w: max_age must be positive", sources.ErrInvalidConfig)
	}

	return &Reader{
		BaseReader: base,
		endpoint:   endpoint,
		maxAge:     maxAge,
	}, nil
}

// Read fetches feed id and checks that the update belongs to it and is recent.
func (r *Reader) Read(ctx context.Context, id oracle.SourceID) (sources.Reading, error) {
	reading, err := r.read(ctx, id)
	r.Record(err)
	return reading, err
}

func (r *Reader) read(ctx context.Context, id oracle.SourceID) (sources.Reading, error) {
	if id.IsZero() {
		return sources.Reading{}, sources.ErrSourceNotConfigured
	}

	q := url.Values{}
	q.Add("ids[]", id.Hex())
	q.Set("parsed", "true")
	body, err := r.GetJSON(ctx, r.endpoint+latestPath+"?"+q.Encode())
	if err != nil {
		return sources.Reading{}, err
	}

	return r.parse(body, id)
}

func (r *Reader) parse(body []byte, id oracle.SourceID) (sources.Reading, error) {
	if !gjson.ValidBytes(body) {
		return sources.Reading{}, fmt.Errorf("%w: malformed JSON", sources.ErrInvalidResponse)
	}

	want := id.Hex()
	var update gjson.Result
	gjson.GetBytes(body, "parsed").ForEach(func(_, v gjson.Result) bool {
		got := strings.TrimPrefix(strings.ToLower(v.Get("id").String()), "0x")
		if got == want {
			update = v
			return false
		}
		return true
	})
	if !update.Exists() {
		return sources.Reading{}, fmt.Errorf("%w: %s", sources.ErrFeedMismatch, id)
	}

	price := update.Get("price")
	mantissa, err := strconv.ParseInt(price.Get("price").String(), 10, 64)
	if err != nil {
		return sources.Reading{}, fmt.Errorf("%w: price: %v", sources.ErrInvalidResponse, err)
	}
	expo := price.Get("expo")
	if !expo.Exists() {
		return sources.Reading{}, fmt.Errorf("%w: missing expo", sources.ErrInvalidResponse)
	}
	publish := price.Get("publish_time")
	if !publish.Exists() {
		return sources.Reading{}, fmt.Errorf("%w: missing publish_time", sources.ErrInvalidResponse)
	}
	publishTime := time.Unix(publish.Int(), 0).UTC()

	if age := r.Now().Sub(publishTime); age > r.maxAge {
		return sources.Reading{}, fmt.Errorf("%w: published %s ago, max %s", sources.ErrStalePrice, age.Truncate(time.Second), r.maxAge)
	}
	if mantissa < 0 {
		return sources.Reading{}, fmt.Errorf("%w: %d", sources.ErrNegativePrice, mantissa)
	}

	e := expo.Int()
	if e < -maxExponent || e > maxExponent {
		return sources.Reading{}, fmt.Errorf("%w: expo %d out of range", sources.ErrInvalidResponse, e)
	}
	exponent := int32(e)
	value := fixedpoint.FromMantissaExponent(mantissa, exponent)

	var conf decimal.Decimal
	if c, err := strconv.ParseInt(price.Get("conf").String(), 10, 64); err == nil {
		conf = fixedpoint.FromMantissaExponent(c, exponent)
	}

	r.Logger().Debug("Pyth price parsed", "feed", id.String(), "price", value.String(), "publish_time", publishTime)

	return sources.Reading{
		Source:      r.Name(),
		Feed:        id,
		Price:       value,
		Confidence:  conf,
		PublishTime: publishTime,
	}, nil
}
