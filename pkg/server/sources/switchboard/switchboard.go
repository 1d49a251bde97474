// Package switchboard reads Switchboard pull feed accounts over Solana JSON-RPC.
package switchboard

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/mr-tron/base58"
	"github.com/tidwall/gjson"

	"github.com/StrathCole/oracle-priority/pkg/fixedpoint"
	"github.com/StrathCole/oracle-priority/pkg/oracle"
	"github.com/StrathCole/oracle-priority/pkg/server/sources"
)

const (
	defaultRPCURL = "https://api.mainnet-beta.solana.com"

	// Offsets into a pull feed account, discriminator included.
	DefaultValueOffset     = 2264
	DefaultTimestampOffset = 2216
	// DefaultDecimals is the fixed precision of feed results.
	DefaultDecimals = 18
)

// Reader decodes the current result of a pull feed account.
type Reader struct {
	*sources.BaseReader

	rpcURL          string
	valueOffset     int
	timestampOffset int
	decimals        int32
	maxAge          time.Duration
	owner           string
}

var _ sources.Reader = (*Reader)(nil)

// NewReader creates a feed account reader. Config keys: rpc_url, value_offset,
// timestamp_offset, decimals, max_age (0 disables the staleness check), program_id
// (expected account owner, optional) plus the common reader keys.
func NewReader(config map[string]interface{}) (sources.Reader, error) {
	base, err := sources.NewBaseReader(sources.SourceTypeSwitchboard, config)
	if err != nil {
		return nil, err
	}

	rpcURL := sources.GetString(config, "rpc_url", defaultRPCURL)
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return nil, fmt.Errorf("%w: rpc_url: %v", sources.ErrInvalidConfig, err)
	}

	valueOffset := sources.GetInt(config, "value_offset", DefaultValueOffset)
	timestampOffset := sources.GetInt(config, "timestamp_offset", DefaultTimestampOffset)
	if valueOffset < 0 || timestampOffset < 0 {
		return nil, fmt.Errorf("%w: negative offset", sources.ErrInvalidConfig)
	}

	decimals := sources.GetInt(config, "decimals", DefaultDecimals)
	if decimals < 0 || decimals > 38 {
		return nil, fmt.Errorf("%w: decimals %d out of range", sources.ErrInvalidConfig, decimals)
	}

	maxAge, err := sources.GetDuration(config, "max_age", 0)
	if err != nil {
		return nil, err
	}

	owner := sources.GetString(config, "program_id", "")
	if owner != "" {
		if raw, err := base58.Decode(owner); err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("%w: program_id %q", sources.ErrInvalidConfig, owner)
		}
	}

	return &Reader{
		BaseReader:      base,
		rpcURL:          rpcURL,
		valueOffset:     valueOffset,
		timestampOffset: timestampOffset,
		decimals:        int32(decimals), // #nosec G115 -- bounded above
		maxAge:          maxAge,
		owner:           owner,
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// Read fetches the feed account and decodes its current value.
func (r *Reader) Read(ctx context.Context, id oracle.SourceID) (sources.Reading, error) {
	reading, err := r.read(ctx, id)
	r.Record(err)
	return reading, err
}

func (r *Reader) read(ctx context.Context, id oracle.SourceID) (sources.Reading, error) {
	if id.IsZero() {
		return sources.Reading{}, sources.ErrSourceNotConfigured
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []interface{}{
			id.Base58(),
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	})
	if err != nil {
		return sources.Reading{}, fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := r.PostJSON(ctx, r.rpcURL, payload)
	if err != nil {
		return sources.Reading{}, err
	}

	data, err := r.accountData(body)
	if err != nil {
		return sources.Reading{}, err
	}
	return r.decode(data, id)
}

func (r *Reader) accountData(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed JSON", sources.ErrInvalidResponse)
	}
	if rpcErr := gjson.GetBytes(body, "error"); rpcErr.Exists() {
		return nil, fmt.Errorf("%w: %d %s", sources.ErrAPIError, rpcErr.Get("code").Int(), rpcErr.Get("message").String())
	}

	value := gjson.GetBytes(body, "result.value")
	if !value.Exists() || value.Type == gjson.Null {
		return nil, sources.ErrAccountNotFound
	}
	if r.owner != "" && value.Get("owner").String() != r.owner {
		return nil, fmt.Errorf("%w: %s", sources.ErrAccountOwner, value.Get("owner").String())
	}

	data := value.Get("data")
	if enc := data.Get("1").String(); enc != "base64" {
		return nil, fmt.Errorf("%w: encoding %q", sources.ErrInvalidResponse, enc)
	}
	raw, err := base64.StdEncoding.DecodeString(data.Get("0").String())
	if err != nil {
		return nil, fmt.Errorf("%w: account data: %v", sources.ErrInvalidResponse, err)
	}
	return raw, nil
}

func (r *Reader) decode(data []byte, id oracle.SourceID) (sources.Reading, error) {
	if len(data) < r.valueOffset+16 {
		return sources.Reading{}, fmt.Errorf("%w: %d bytes, value at %d", sources.ErrAccountTooShort, len(data), r.valueOffset)
	}

	value := DecodeI128(data[r.valueOffset : r.valueOffset+16])
	if value.Sign() < 0 {
		return sources.Reading{}, fmt.Errorf("%w: %s", sources.ErrNegativePrice, value.String())
	}

	var publishTime time.Time
	if len(data) >= r.timestampOffset+8 {
		ts := int64(binary.LittleEndian.Uint64(data[r.timestampOffset:])) // #nosec G115 -- signed on chain
		if ts > 0 {
			publishTime = time.Unix(ts, 0).UTC()
		}
	}

	if r.maxAge > 0 {
		if publishTime.IsZero() {
			return sources.Reading{}, fmt.Errorf("%w: no update timestamp", sources.ErrStalePrice)
		}
		if age := r.Now().Sub(publishTime); age > r.maxAge {
			return sources.Reading{}, fmt.Errorf("%w: updated %s ago, max %s", sources.ErrStalePrice, age.Truncate(time.Second), r.maxAge)
		}
	}

	price := fixedpoint.FromScaledInt(value, r.decimals)
	r.Logger().Debug("Switchboard value decoded", "feed", id.Base58(), "price", price.String())

	return sources.Reading{
		Source:      r.Name(),
		Feed:        id,
		Price:       price,
		PublishTime: publishTime,
	}, nil
}

// DecodeI128 interprets 16 little-endian bytes as a two's complement signed integer.
func DecodeI128(b []byte) *big.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[15-i] = b[i]
	}
	v := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return v
}

// EncodeI128 is the inverse of DecodeI128. v must fit in 128 bits.
func EncodeI128(v *big.Int) []byte {
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	be := make([]byte, 16)
	u.FillBytes(be)
	out := make([]byte, 16)
	for i := 0; i < 16; i++ {
		out[i] = be[15-i]
	}
	return out
}
